package snapshot

import (
	"errors"
	"time"

	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/core/instance"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/storage/archive"
	"github.com/yndnr/wasmsnap-go/internal/storage/rle"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/metric"
)

// Config holds snapshot manager configuration.
type Config struct {
	// InputDir holds the artifacts Load reads.
	InputDir string

	// OutputDir receives the artifacts Save writes.
	OutputDir string

	// SnapshotID is the id the next session opens. Ids start at 1.
	SnapshotID uint32

	// PageSize is used when Load has to create a memory.
	// Default: 65536
	PageSize uint64

	// ZipFactor is the minimum run length the RLE strategy compresses.
	// Default: 16
	ZipFactor int64

	// SparseFirstSave omits zero bytes from the first Diff Log save.
	// Default: true
	SparseFirstSave bool

	// Strategy selects the memory persistence.
	// Default: difflog
	Strategy Strategy

	// VerifyModule checks the manifest against the live module on Load.
	// Default: true
	VerifyModule bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig(dir string) Config {
	return Config{
		InputDir:        dir,
		OutputDir:       dir,
		SnapshotID:      1,
		PageSize:        instance.DefaultPageSize,
		ZipFactor:       rle.DefaultZipFactor,
		SparseFirstSave: true,
		Strategy:        StrategyDiffLog,
		VerifyModule:    true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.SnapshotID == 0 {
		return domain.ErrInvalidConfig.WithDetails("snapshot id must be at least 1")
	}
	if c.PageSize == 0 {
		return domain.ErrInvalidConfig.WithDetails("page size must be positive")
	}
	if c.ZipFactor < 1 {
		return domain.ErrInvalidConfig.WithDetails("zip factor must be positive")
	}
	return nil
}

// Manager saves and loads snapshots of one VM.
type Manager struct {
	cfg     Config
	stack   instance.StackManager
	logger  logger.Logger
	metrics *metric.Registry

	in, out storage.Store
	owned   []storage.Store

	memory  MemoryPersistence
	sess    *session
	chainID string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records save and load metrics into r.
func WithMetrics(r *metric.Registry) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithInputStore reads artifacts from s instead of InputDir.
func WithInputStore(s storage.Store) Option {
	return func(m *Manager) {
		m.in = s
	}
}

// WithOutputStore writes artifacts to s instead of OutputDir.
func WithOutputStore(s storage.Store) Option {
	return func(m *Manager) {
		m.out = s
	}
}

// WithStore reads and writes artifacts in s.
func WithStore(s storage.Store) Option {
	return func(m *Manager) {
		m.in, m.out = s, s
	}
}

// NewManager creates a manager for the VM behind stack.
func NewManager(cfg Config, stack instance.StackManager, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		stack:  stack,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.in == nil {
		s, err := storage.NewFileStore(cfg.InputDir)
		if err != nil {
			return nil, domain.ErrIOFailure.WithDetails("open input directory").Wrap(err)
		}
		m.in = s
		m.owned = append(m.owned, s)
	}
	if m.out == nil {
		s, err := storage.NewFileStore(cfg.OutputDir)
		if err != nil {
			m.Shutdown()
			return nil, domain.ErrIOFailure.WithDetails("open output directory").Wrap(err)
		}
		m.out = s
		m.owned = append(m.owned, s)
	}

	m.memory = newPersistence(cfg)
	m.logger = m.logger.With("component", "snapshot", "strategy", string(cfg.Strategy))
	return m, nil
}

// ID returns the id the next session opens.
func (m *Manager) ID() uint32 { return m.cfg.SnapshotID }

// SetID changes the id the next session opens. Moving away from the id that
// follows the Diff Log baseline drops the baseline, so the next save starts
// a new chain.
func (m *Manager) SetID(id uint32) error {
	if err := m.checkID(id); err != nil {
		return err
	}
	if id != m.cfg.SnapshotID {
		if dl, ok := m.memory.(*DiffLogPersistence); ok && dl.HasBaseline() {
			m.logger.Warn("snapshot id leaves the diff log chain, starting a new chain",
				"id", id, "next_in_chain", m.cfg.SnapshotID, "chain_id", m.chainID)
			dl.Reset()
			m.chainID = ""
		}
	}
	m.cfg.SnapshotID = id
	return nil
}

func (m *Manager) checkID(id uint32) error {
	if m.sess != nil {
		return domain.ErrSessionOpen.WithDetailsf("cannot change id during %s session", m.sess.mode)
	}
	if id == 0 {
		return domain.ErrInvalidConfig.WithDetails("snapshot id must be at least 1")
	}
	return nil
}

// ChainID returns the chain id of the current write chain, empty before the
// first Save or Load.
func (m *Manager) ChainID() string { return m.chainID }

// Mode returns the mode of the open session.
func (m *Manager) Mode() Mode {
	if m.sess == nil {
		return ModeNone
	}
	return m.sess.mode
}

// Open starts a session. ModeWrite creates <id>.snap in the output store;
// ModeRead opens <id>.snap in the input store.
func (m *Manager) Open(mode Mode) error {
	if m.sess != nil {
		return domain.ErrSessionOpen.WithDetailsf("%s session on snapshot %d", m.sess.mode, m.sess.id)
	}

	var (
		sess *session
		err  error
	)
	switch mode {
	case ModeWrite:
		sess, err = openWrite(m.out, m.cfg.SnapshotID, m.cfg.Strategy)
	case ModeRead:
		sess, err = openRead(m.in, m.cfg.SnapshotID, m.cfg.Strategy)
	default:
		return domain.ErrInvalidMode.WithDetailsf("cannot open in mode %s", mode)
	}
	if err != nil {
		return err
	}

	m.sess = sess
	m.logger.Debug("snapshot session opened", "id", sess.id, "mode", mode.String())
	return nil
}

// Close ends the session, releasing every handle it opened. After a
// successful Save the manifest is written once the artifacts are committed.
func (m *Manager) Close() error {
	if m.sess == nil {
		return nil
	}
	sess := m.sess
	m.sess = nil

	err := sess.close()
	for kind, n := range sess.written() {
		m.metrics.AddArtifactBytes(kind, n)
	}
	if err != nil {
		return classify(err, "close session")
	}

	if sess.pending != nil {
		sess.pending.ArtifactBytes = sess.written()
		sess.pending.CreatedAt = time.Now().UnixMilli()
		if err := writeManifest(m.out, sess.pending); err != nil {
			return classify(err, storage.MetaName(sess.id))
		}
		if sess.staged {
			m.memory.Adopt(sess.baseline)
		}
	}

	m.logger.Debug("snapshot session closed", "id", sess.id, "mode", sess.mode.String())
	return nil
}

// Shutdown closes any open session and the stores the manager created.
func (m *Manager) Shutdown() error {
	errs := []error{m.Close()}
	for _, s := range m.owned {
		errs = append(errs, s.Close())
	}
	m.owned = nil
	return errors.Join(errs...)
}

// Save writes the VM state with pc as the current position. It requires a
// write session.
func (m *Manager) Save(pc domain.Position) error {
	start := time.Now()
	err := m.save(pc)
	m.metrics.ObserveSave(string(m.cfg.Strategy), time.Since(start), err)
	if err != nil {
		m.logger.Error("snapshot save failed", "id", m.cfg.SnapshotID, "error", err)
		return err
	}
	m.logger.Info("snapshot saved",
		"id", m.sess.id,
		"chain_id", m.chainID,
		"duration", time.Since(start),
	)
	return nil
}

func (m *Manager) save(pc domain.Position) error {
	if m.sess == nil || m.sess.mode != ModeWrite {
		return domain.ErrInvalidMode.WithDetailsf("save in %s mode", m.Mode())
	}
	sess := m.sess
	if sess.pending != nil {
		return domain.ErrInvalidMode.WithDetailsf("snapshot %d already saved in this session", sess.id)
	}
	mod := m.stack.Module()

	if dl, ok := m.memory.(*DiffLogPersistence); ok && sess.id > 1 && !dl.HasBaseline() {
		m.logger.Warn("diff log snapshot has no baseline, starting a new chain", "id", sess.id)
		m.chainID = ""
	}
	if m.chainID == "" {
		id, err := domain.NewChainID()
		if err != nil {
			return err
		}
		m.chainID = id
	}

	res := NewResolver(mod)
	st, err := CaptureControl(m.stack, res, pc)
	if err != nil {
		return err
	}
	if st.Truncated > 0 {
		m.logger.Warn("operand values wider than 64 bits truncated", "id", sess.id, "count", st.Truncated)
		m.metrics.AddTruncated(st.Truncated)
	}

	w := sess.w
	switch m.cfg.Strategy {
	case StrategyRLE:
		err = EncodeControl(w, st)
		if err == nil {
			err = EncodeGlobals(w, mod.Globals())
		}
		if err == nil {
			err = encodePC(w, st.PC)
		}
	default:
		err = EncodeGlobals(w, mod.Globals())
		if err == nil {
			err = EncodeControl(w, st)
		}
	}
	if err != nil {
		return classify(err, "control state")
	}

	ms, err := m.memory.Encode(sess, mod.Memory())
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return classify(err, storage.SnapName(sess.id))
	}
	m.recordMemory("encode", ms)

	sess.pending = &Manifest{
		Version:           ManifestVersion,
		ID:                sess.id,
		Strategy:          m.cfg.Strategy,
		ChainID:           m.chainID,
		ModuleFingerprint: fingerprint(mod),
		Functions:         len(mod.Functions()),
		Globals:           len(mod.Globals()),
		Values:            len(st.Values),
		Frames:            st.FrameCount,
		PC:                st.PC,
		Truncated:         st.Truncated,
		Memory:            ms,
	}
	return nil
}

func (m *Manager) recordMemory(op string, ms MemoryStats) {
	if ms.Diff != nil {
		m.metrics.AddDiffRecords(op, ms.Diff.Records)
	}
	if ms.RLE != nil {
		m.metrics.AddRLERecords(ms.RLE.Runs, ms.RLE.Literals)
	}
}

// Load restores the VM state from the read session and returns the restored
// program counter and its function.
//
// Load is all-or-nothing: every section is decoded and every position
// resolved before the module or the stack is modified.
func (m *Manager) Load() (domain.Position, instance.Function, error) {
	start := time.Now()
	pc, fn, err := m.load()
	m.metrics.ObserveLoad(string(m.cfg.Strategy), time.Since(start), err)
	if err != nil {
		m.logger.Error("snapshot load failed", "id", m.cfg.SnapshotID, "error", err)
		return 0, nil, err
	}
	m.logger.Info("snapshot loaded",
		"id", m.cfg.SnapshotID,
		"chain_id", m.chainID,
		"function", fn.Name(),
		"duration", time.Since(start),
	)
	return pc, fn, nil
}

func (m *Manager) load() (domain.Position, instance.Function, error) {
	if m.sess == nil || m.sess.mode != ModeRead {
		return 0, nil, domain.ErrInvalidMode.WithDetailsf("load in %s mode", m.Mode())
	}
	sess := m.sess
	mod := m.stack.Module()

	man, err := ReadManifest(m.in, sess.id)
	switch {
	case isNotFound(err):
		m.logger.Debug("snapshot has no manifest", "id", sess.id)
		man = nil
	case err != nil:
		return 0, nil, classify(err, storage.MetaName(sess.id))
	case man.Strategy != m.cfg.Strategy:
		return 0, nil, domain.ErrFormatCorruption.
			WithDetailsf("snapshot %d was written with strategy %s", sess.id, man.Strategy)
	}
	if man != nil && m.cfg.VerifyModule {
		if err := man.checkModule(mod); err != nil {
			return 0, nil, err
		}
		if err := checkChain(m.in, man); err != nil {
			return 0, nil, err
		}
	}

	globals, st, err := decodeSections(sess.r, m.cfg.Strategy)
	if err != nil {
		return 0, nil, err
	}
	image, ms, err := m.memory.Decode(sess)
	if err != nil {
		return 0, nil, err
	}

	if err := checkGlobals(mod, globals); err != nil {
		return 0, nil, err
	}
	rc, err := resolveControl(NewResolver(mod), st)
	if err != nil {
		return 0, nil, err
	}
	if err := applyImage(mod, image, m.cfg.PageSize); err != nil {
		return 0, nil, err
	}

	// Nothing below can fail.
	_ = ApplyGlobals(mod, globals)
	pc, fn := rc.apply(m.stack)
	m.memory.Adopt(image)
	m.recordMemory("replay", ms)

	if man != nil && man.ChainID != "" {
		m.chainID = man.ChainID
	} else {
		m.chainID = ""
	}
	return pc, fn, nil
}

// decodeSections reads globals and control state in the order strategy
// wrote them, leaving r at the memory section.
func decodeSections(r archive.Reader, strategy Strategy) ([]domain.Value, ControlState, error) {
	var (
		globals []domain.Value
		st      ControlState
		err     error
	)

	switch strategy {
	case StrategyRLE:
		if st, err = DecodeControl(r); err != nil {
			return nil, st, err
		}
		if globals, err = DecodeGlobals(r); err != nil {
			return nil, st, err
		}
		again, err := decodePC(r)
		if err != nil {
			return nil, st, classify(err, "program counter")
		}
		if again != st.PC {
			return nil, st, domain.ErrFormatCorruption.
				WithDetailsf("program counters disagree: %s and %s", st.PC, again)
		}
	default:
		if globals, err = DecodeGlobals(r); err != nil {
			return nil, st, err
		}
		if st, err = DecodeControl(r); err != nil {
			return nil, st, err
		}
	}
	return globals, st, nil
}

// Checkpoint saves the VM state as the current id and advances the id.
func (m *Manager) Checkpoint(pc domain.Position) (uint32, error) {
	id := m.cfg.SnapshotID
	if err := m.Open(ModeWrite); err != nil {
		return 0, err
	}
	err := m.Save(pc)
	if cerr := m.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	m.cfg.SnapshotID = id + 1
	return id, nil
}

// Restore loads snapshot id and positions the manager after it, so that the
// next Checkpoint extends the restored chain. A failed load leaves the id
// and the baseline as they were.
func (m *Manager) Restore(id uint32) (domain.Position, instance.Function, error) {
	if err := m.checkID(id); err != nil {
		return 0, nil, err
	}
	prev := m.cfg.SnapshotID
	m.cfg.SnapshotID = id
	if err := m.Open(ModeRead); err != nil {
		m.cfg.SnapshotID = prev
		return 0, nil, err
	}
	pc, fn, err := m.Load()
	cerr := m.Close()
	if err != nil {
		m.cfg.SnapshotID = prev
		return 0, nil, err
	}
	// The VM now holds snapshot id even if releasing the read handle failed.
	m.cfg.SnapshotID = id + 1
	if cerr != nil {
		return 0, nil, cerr
	}
	return pc, fn, nil
}
