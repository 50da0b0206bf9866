package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChainIDPrefix prefixes every chain id.
const ChainIDPrefix = "wsch-"

// NewChainID generates the id shared by every snapshot of one write chain.
//
// Format: wsch-{ulid_lowercase}, 31 characters total.
func NewChainID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrIOFailure.WithDetails("generate chain id").Wrap(err)
	}
	return ChainIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidChainID reports whether id has the NewChainID format.
func IsValidChainID(id string) bool {
	if len(id) != len(ChainIDPrefix)+ulid.EncodedSize || !strings.HasPrefix(id, ChainIDPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(ChainIDPrefix):]))
	return err == nil
}

// ChainTime returns the creation time encoded in a chain id.
func ChainTime(id string) (time.Time, bool) {
	if !IsValidChainID(id) {
		return time.Time{}, false
	}
	u := ulid.MustParse(strings.ToUpper(id[len(ChainIDPrefix):]))
	return ulid.Time(u.Time()), true
}
