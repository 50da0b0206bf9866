package command

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wasmsnap-go/internal/cli/output"
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/difflog"
	"github.com/yndnr/wasmsnap-go/internal/storage/snapshot"
)

// ListCommand lists the snapshots in the store.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List snapshots",
		Action:  snapshotList,
	}
}

// InspectCommand decodes one snapshot without a module.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the content of a snapshot",
		ArgsUsage: "ID",
		Action:    snapshotInspect,
	}
}

// VerifyCommand fully decodes one snapshot, replaying its diff log chain.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check that a snapshot decodes and its chain replays",
		ArgsUsage: "ID",
		Action:    snapshotVerify,
	}
}

// CompactCommand squashes the diff log chain up to a snapshot.
func CompactCommand() *cli.Command {
	return &cli.Command{
		Name:      "compact",
		Usage:     "Squash diff logs 1..ID into ID.bin",
		ArgsUsage: "[ID]",
		Description: "Without ID, the newest diff log snapshot is compacted when the\n" +
			"total diff log size exceeds snapshot.compact_threshold.",
		Action: snapshotCompact,
	}
}

// snapshotRow is one line of `wasmsnap list`.
type snapshotRow struct {
	ID        uint32    `json:"id" yaml:"id"`
	Strategy  string    `json:"strategy" yaml:"strategy"`
	Chain     string    `json:"chain_id" yaml:"chain_id"`
	Created   time.Time `json:"created" yaml:"created"`
	Artifacts int       `json:"artifacts" yaml:"artifacts"`
	Bytes     int64     `json:"bytes" yaml:"bytes"`
}

func snapshotList(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	infos, err := store.List()
	if err != nil {
		return domain.ErrIOFailure.WithDetails("list store").Wrap(err)
	}

	rows := []snapshotRow{}
	byID := map[uint32]int{}
	for _, id := range storage.SnapshotIDs(infos) {
		byID[id] = len(rows)
		row := snapshotRow{ID: id}
		man, err := snapshot.ReadManifest(store, id)
		switch {
		case err == nil:
			row.Strategy = string(man.Strategy)
			row.Chain = man.ChainID
			row.Created = man.Created()
		case !errors.Is(err, storage.ErrNotFound):
			e.log.Warn("unreadable manifest", "id", id, "error", err)
		}
		rows = append(rows, row)
	}

	for _, info := range infos {
		id, _, ok := storage.ParseArtifact(info.Name)
		if !ok {
			continue
		}
		if i, ok := byID[id]; ok {
			rows[i].Artifacts++
			rows[i].Bytes += info.Size
		}
	}
	return e.print(rows)
}

// parseID reads the snapshot id argument at position i.
func parseID(c *cli.Context, i int) (uint32, error) {
	arg := c.Args().Get(i)
	if arg == "" {
		return 0, fmt.Errorf("%s: snapshot ID required", c.Command.Name)
	}
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s: invalid snapshot ID %q", c.Command.Name, arg)
	}
	return uint32(id), nil
}

// strategyFor picks the strategy used to decode snapshot id: the --strategy
// flag when given, otherwise the manifest's, otherwise the configured one.
func (e *env) strategyFor(c *cli.Context, store storage.Store, id uint32) snapshot.Strategy {
	if c.IsSet("strategy") {
		return snapshot.Strategy(e.cfg.Snapshot.Strategy)
	}
	if _, err := store.Stat(storage.MetaName(id)); err == nil {
		return ""
	}
	return snapshot.Strategy(e.cfg.Snapshot.Strategy)
}

// summaryView renders a snapshot summary as FIELD/VALUE rows in table mode
// and as the plain summary otherwise.
type summaryView struct {
	snapshot.Summary `yaml:",inline"`
}

func (v summaryView) Table() *output.Table {
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("id", output.Cell(v.ID))
	t.AddRow("strategy", string(v.Strategy))
	if m := v.Manifest; m != nil {
		t.AddRow("chain_id", m.ChainID)
		t.AddRow("created", output.Cell(m.Created()))
		t.AddRow("module", m.ModuleFingerprint)
	}
	t.AddRow("values", output.Cell(len(v.Values)))
	t.AddRow("globals", output.Cell(len(v.Globals)))
	t.AddRow("frames", output.Cell(v.Control.FrameCount))
	t.AddRow("pc", v.Control.PC.String())
	t.AddRow("memory_bytes", output.Cell(v.Memory.Bytes))
	if d := v.Memory.Diff; d != nil {
		t.AddRow("diff_records", output.Cell(d.Records))
		t.AddRow("diff_skipped", output.Cell(d.Skipped))
	}
	if r := v.Memory.RLE; r != nil {
		t.AddRow("rle_runs", output.Cell(r.Runs))
		t.AddRow("rle_literals", output.Cell(r.Literals))
	}
	if v.Verified {
		t.AddRow("verified", "true")
		t.AddRow("non_zero_bytes", output.Cell(v.NonZero))
		for _, seg := range v.Chain {
			t.AddRow(fmt.Sprintf("chain[%d]", seg.ID),
				fmt.Sprintf("%d records, %d skipped", seg.Records, seg.Skipped))
		}
	}
	return t
}

func snapshotInspect(c *cli.Context) error {
	return summarize(c, snapshot.Inspect)
}

func snapshotVerify(c *cli.Context) error {
	return summarize(c, snapshot.Verify)
}

type summaryFunc func(storage.Store, uint32, snapshot.Strategy) (*snapshot.Summary, error)

func summarize(c *cli.Context, fn summaryFunc) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, 0)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	start := time.Now()
	sum, err := fn(store, id, e.strategyFor(c, store, id))
	if err != nil {
		return fmt.Errorf("%s %d: %w", c.Command.Name, id, err)
	}
	e.logFor(c, id).Info(c.Command.Name+" complete", "strategy", sum.Strategy, "duration", time.Since(start))
	return e.print(summaryView{*sum})
}

// compactResult is the output of `wasmsnap compact`.
type compactResult struct {
	ID            uint32 `json:"id" yaml:"id"`
	Skipped       bool   `json:"skipped" yaml:"skipped"`
	Logs          int    `json:"logs" yaml:"logs"`
	RecordsBefore uint64 `json:"records_before" yaml:"records_before"`
	RecordsAfter  uint64 `json:"records_after" yaml:"records_after"`
	Removed       int    `json:"removed" yaml:"removed"`
	BinBytes      int64  `json:"bin_bytes" yaml:"bin_bytes"`
}

func snapshotCompact(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}
	comp := difflog.NewCompactor(store, difflog.WithLogger(e.logFor(c, 0)))

	var id uint32
	if c.Args().Present() {
		if id, err = parseID(c, 0); err != nil {
			return err
		}
	} else {
		threshold := e.cfg.Snapshot.CompactThreshold
		if !comp.NeedsCompaction(threshold) {
			e.logFor(c, 0).Info("diff logs below compaction threshold", "threshold", threshold)
			return e.print(compactResult{Skipped: true})
		}
		if id, err = newestDiffLog(store); err != nil {
			return err
		}
	}

	st, err := comp.Compact(id)
	if err != nil {
		return fmt.Errorf("compact %d: %w", id, err)
	}
	e.metrics.IncCompactions()

	res := compactResult{
		ID:            id,
		Logs:          st.Logs,
		RecordsBefore: st.RecordsBefore,
		RecordsAfter:  st.RecordsAfter,
		Removed:       st.Removed,
	}
	if size, err := comp.TotalSize(); err == nil {
		res.BinBytes = size
	}
	return e.print(res)
}

// newestDiffLog returns the highest snapshot id that has both a .snap and
// a .bin artifact.
func newestDiffLog(store storage.Store) (uint32, error) {
	infos, err := store.List()
	if err != nil {
		return 0, domain.ErrIOFailure.WithDetails("list store").Wrap(err)
	}
	ids := storage.SnapshotIDs(infos)
	for i := len(ids) - 1; i >= 0; i-- {
		if _, err := store.Stat(storage.BinName(ids[i])); err == nil {
			return ids[i], nil
		}
	}
	return 0, domain.ErrSnapshotNotFound.WithDetails("no diff log snapshot to compact")
}
