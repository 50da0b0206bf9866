package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewChainID(t *testing.T) {
	id, err := NewChainID()
	if err != nil {
		t.Fatalf("NewChainID: %v", err)
	}
	if len(id) != 31 {
		t.Errorf("len = %d, want 31", len(id))
	}
	if id != strings.ToLower(id) {
		t.Errorf("chain id should be lowercase: %s", id)
	}
	if !IsValidChainID(id) {
		t.Errorf("IsValidChainID(%q) = false", id)
	}

	other, _ := NewChainID()
	if other == id {
		t.Error("chain ids should be unique")
	}

	ts, ok := ChainTime(id)
	if !ok {
		t.Fatal("ChainTime should accept a fresh id")
	}
	if d := time.Since(ts); d < 0 || d > time.Minute {
		t.Errorf("chain time %v is not recent", ts)
	}
}

func TestIsValidChainID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"empty", "", false},
		{"no prefix", "01hqz6b5k3m8n2p4r6t8v0w2y4", false},
		{"wrong prefix", "tmss-01hqz6b5k3m8n2p4r6t8v0w2y4", false},
		{"bad ulid", "wsch-!!!!!!!!!!!!!!!!!!!!!!!!!!", false},
		{"valid", "wsch-01hqz6b5k3m8n2p4r6t8v0w2y4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidChainID(tt.id); got != tt.want {
				t.Errorf("IsValidChainID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
