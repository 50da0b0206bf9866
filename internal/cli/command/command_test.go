package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/snapshot"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"wasmsnap"}, args...))
	return stdout.String(), err
}

// writeChain writes n checkpoints of a small VM into dir. Checkpoint k
// stores byte k at offset 100*k of a one-page memory.
func writeChain(t *testing.T, dir string, strategy snapshot.Strategy, n int) {
	t.Helper()
	mod := instance.NewModule("cli", 0)
	mod.AddFunction("main", make([]instance.Instruction, 16))
	mod.AddGlobal(true, domain.ValueOf(7))
	mem, err := mod.AddMemory(instance.DefaultPageSize, 1)
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	stack := instance.NewStack(mod)
	stack.Push(domain.ValueOf(99))

	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	cfg := snapshot.DefaultConfig("")
	cfg.Strategy = strategy
	m, err := snapshot.NewManager(cfg, stack, snapshot.WithStore(store), snapshot.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	entry := mod.Functions()[0].Entry()
	for k := 1; k <= n; k++ {
		mem.Data()[100*k] = byte(k)
		if _, err := m.Checkpoint(entry + domain.Position(k)); err != nil {
			t.Fatalf("Checkpoint %d: %v", k, err)
		}
	}
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "wasmsnap" {
		t.Errorf("Name = %q", app.Name)
	}

	commands := map[string]bool{}
	for _, cmd := range app.Commands {
		commands[cmd.Name] = true
	}
	for _, name := range []string{"list", "inspect", "verify", "compact", "export", "import", "config", "version"} {
		if !commands[name] {
			t.Errorf("missing command %q", name)
		}
	}

	flags := map[string]bool{}
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "dir", "strategy", "backend", "output", "log-level", "metrics-file"} {
		if !flags[name] {
			t.Errorf("missing flag %q", name)
		}
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 3)

	out, err := run(t, "--dir", dir, "-o", "json", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var rows []snapshotRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, r := range rows {
		if r.ID != uint32(i+1) || r.Strategy != "difflog" {
			t.Errorf("row %d = %+v", i, r)
		}
		if r.Chain != rows[0].Chain || !domain.IsValidChainID(r.Chain) {
			t.Errorf("row %d chain = %q", i, r.Chain)
		}
		// .snap, .bin and .meta
		if r.Artifacts != 3 {
			t.Errorf("row %d artifacts = %d", i, r.Artifacts)
		}
	}
}

func TestInspectAndVerify(t *testing.T) {
	tests := []struct {
		name     string
		strategy snapshot.Strategy
		args     []string
		want     []string
	}{
		{"inspect yaml", snapshot.StrategyDiffLog, []string{"-o", "yaml", "inspect", "2"},
			[]string{"strategy: difflog", "frame_count: 2", "offset: 2"}},
		{"verify table", snapshot.StrategyDiffLog, []string{"verify", "3"},
			[]string{"verified", "true", "chain[1]", "chain[3]", "non_zero_bytes"}},
		{"verify rle", snapshot.StrategyRLE, []string{"verify", "2"},
			[]string{"rle", "rle_runs", "verified"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeChain(t, dir, tt.strategy, 3)

			out, err := run(t, append([]string{"--dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestVerify_NonZeroMatchesChain(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 3)

	out, err := run(t, "--dir", dir, "-o", "json", "verify", "3")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var sum snapshot.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sum.Verified || sum.NonZero != 3 || len(sum.Chain) != 3 {
		t.Errorf("summary = verified %v, non-zero %d, chain %d", sum.Verified, sum.NonZero, len(sum.Chain))
	}
}

func TestInspect_Errors(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 1)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing snapshot", []string{"inspect", "9"}, domain.ErrSnapshotNotFound},
		{"bad strategy", []string{"--strategy", "zip", "inspect", "1"}, domain.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"--dir", dir}, tt.args...)...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := run(t, "--dir", dir, "inspect", "x"); err == nil {
		t.Error("non-numeric id should fail")
	}
	if _, err := run(t, "--dir", dir, "inspect"); err == nil {
		t.Error("missing id should fail")
	}
}

func TestCompact(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 3)
	metrics := filepath.Join(t.TempDir(), "wasmsnap.prom")

	out, err := run(t, "--dir", dir, "--metrics-file", metrics, "-o", "json", "compact", "3")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	var res compactResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ID != 3 || res.Logs != 3 || res.Removed == 0 {
		t.Errorf("result = %+v", res)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "wasmsnap_difflog_compactions_total 1") {
		t.Errorf("metrics missing compaction:\n%s", data)
	}

	out, err = run(t, "--dir", dir, "-o", "json", "verify", "3")
	if err != nil {
		t.Fatalf("verify after compact: %v", err)
	}
	var sum snapshot.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.NonZero != 3 {
		t.Errorf("non-zero bytes after compact = %d, want 3", sum.NonZero)
	}

	if _, err := run(t, "--dir", dir, "inspect", "1"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("snapshot 1 should be gone, err = %v", err)
	}
}

func TestCompact_BelowThreshold(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 2)

	out, err := run(t, "--dir", dir, "-o", "json", "compact")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	var res compactResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Skipped {
		t.Errorf("small chain should not be compacted: %+v", res)
	}
}

func TestCompact_OverThresholdPicksNewest(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, snapshot.StrategyDiffLog, 2)
	t.Setenv("WASMSNAP_SNAPSHOT_COMPACT_THRESHOLD", "1")

	out, err := run(t, "--dir", dir, "-o", "json", "compact")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	var res compactResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Skipped || res.ID != 2 {
		t.Errorf("result = %+v, want snapshot 2 compacted", res)
	}
}

func TestExportImport(t *testing.T) {
	tests := []struct {
		name   string
		sealed bool
	}{
		{"plain", false},
		{"sealed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := t.TempDir(), t.TempDir()
			writeChain(t, src, snapshot.StrategyDiffLog, 3)
			file := filepath.Join(t.TempDir(), "chain.wsb")

			var extra []string
			if tt.sealed {
				pass := filepath.Join(t.TempDir(), "pass")
				if err := os.WriteFile(pass, []byte("correct horse battery\n"), 0o600); err != nil {
					t.Fatalf("write passphrase: %v", err)
				}
				extra = []string{"--passphrase-file", pass}
			}

			args := append([]string{"--dir", src, "-o", "json", "export", "--out", file}, extra...)
			out, err := run(t, append(args, "2")...)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if !strings.Contains(out, `"2.snap"`) || strings.Contains(out, `"3.bin"`) {
				t.Errorf("unexpected artifacts: %s", out)
			}

			args = append([]string{"--dir", dst, "import"}, extra...)
			if _, err := run(t, append(args, file)...); err != nil {
				t.Fatalf("import: %v", err)
			}

			out, err = run(t, "--dir", dst, "-o", "json", "verify", "2")
			if err != nil {
				t.Fatalf("verify imported: %v", err)
			}
			if !strings.Contains(out, `"verified": true`) {
				t.Errorf("imported snapshot not verified: %s", out)
			}
		})
	}
}

func TestImport_SealedWithoutPassphrase(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeChain(t, src, snapshot.StrategyRLE, 1)
	file := filepath.Join(t.TempDir(), "one.wsb")

	t.Setenv("WASMSNAP_BUNDLE_PASSPHRASE", "correct horse battery")
	if _, err := run(t, "--dir", src, "export", "--out", file, "1"); err != nil {
		t.Fatalf("export: %v", err)
	}
	os.Unsetenv("WASMSNAP_BUNDLE_PASSPHRASE")

	if _, err := run(t, "--dir", dst, "import", file); err == nil {
		t.Fatal("import of a sealed bundle without passphrase should fail")
	}
}

func TestConfigShow(t *testing.T) {
	t.Setenv("WASMSNAP_BUNDLE_PASSPHRASE", "supersecret")

	cfgFile := filepath.Join(t.TempDir(), "wasmsnap.yaml")
	content := "snapshot:\n  strategy: rle\n  zip_factor: 32\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, "--config", cfgFile, "--dir", "/var/lib/wasmsnap", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, s := range []string{"strategy: rle", "zip_factor: 32", "dir: /var/lib/wasmsnap", "su*******et"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
	if strings.Contains(out, "supersecret") {
		t.Error("passphrase leaked")
	}
}

func TestConfigValidate_Invalid(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "wasmsnap.yaml")
	if err := os.WriteFile(cfgFile, []byte("snapshot:\n  zip_factor: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := run(t, "--config", cfgFile, "config", "validate")
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("err = %v, want invalid config", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"archive_version": 1`) {
		t.Errorf("version output = %s", out)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := run(t, "-o", "xml", "version"); err == nil {
		t.Error("unknown output format should fail")
	}
}
