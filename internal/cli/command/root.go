package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wasmsnap-go/internal/cli/output"
	"github.com/yndnr/wasmsnap-go/internal/config"
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/infra/buildinfo"
	"github.com/yndnr/wasmsnap-go/internal/infra/confloader"
	"github.com/yndnr/wasmsnap-go/internal/storage"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/logger"
	"github.com/yndnr/wasmsnap-go/internal/telemetry/metric"
)

const envKey = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "wasmsnap",
		Usage:   "Inspect and manage VM checkpoint snapshots",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ListCommand(),
			InspectCommand(),
			VerifyCommand(),
			CompactCommand(),
			ExportCommand(),
			ImportCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (YAML)",
			EnvVars: []string{"WASMSNAP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Snapshot directory",
		},
		&cli.StringFlag{
			Name:  "strategy",
			Usage: "Memory strategy for snapshots without a manifest: difflog, rle",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Artifact store: file, badger",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit table headers",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus text metrics to this file on exit",
		},
	}
}

// env is the per-invocation state shared by commands.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry
	format  output.Formatter
	stdout  io.Writer

	store storage.Store
}

// flagOverrides maps the global flags that were set onto config keys.
func flagOverrides(c *cli.Context) map[string]any {
	m := map[string]any{}
	section := func(name string) map[string]any {
		s, ok := m[name].(map[string]any)
		if !ok {
			s = map[string]any{}
			m[name] = s
		}
		return s
	}

	if c.IsSet("dir") {
		section("storage")["dir"] = c.String("dir")
	}
	if c.IsSet("backend") {
		section("storage")["backend"] = c.String("backend")
	}
	if c.IsSet("strategy") {
		section("snapshot")["strategy"] = c.String("strategy")
	}
	if c.IsSet("log-level") {
		section("log")["level"] = c.String("log-level")
	}
	if c.IsSet("metrics-file") {
		section("metrics")["textfile"] = c.String("metrics-file")
	}
	return m
}

// loadConfig merges defaults, the config file, WASMSNAP_ variables and flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	l := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := l.Load(cfg, flagOverrides(c)); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, domain.ErrInvalidConfig.Wrap(err)
	}
	return cfg, nil
}

func setup(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	lcfg := cfg.LoggerConfig()
	lcfg.Output = c.App.ErrWriter
	log, err := logger.New(lcfg)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	stdout := c.App.Writer
	if stdout == nil {
		stdout = os.Stdout
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[envKey] = &env{
		cfg:     cfg,
		log:     log,
		metrics: metric.NewRegistry(),
		format:  output.NewFormatter(format, c.Bool("no-headers")),
		stdout:  stdout,
	}
	return nil
}

func teardown(c *cli.Context) error {
	e, ok := c.App.Metadata[envKey].(*env)
	if !ok {
		return nil
	}

	var errs []error
	if path := e.cfg.Metrics.TextFile; path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		e.store = nil
	}
	return errors.Join(errs...)
}

func getEnv(c *cli.Context) (*env, error) {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e, nil
	}
	return nil, errors.New("command: environment not initialised")
}

// openStore opens the configured store once per invocation and registers
// its collectors.
func (e *env) openStore() (storage.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	scfg := e.cfg.StorageConfig()
	store, err := storage.Open(scfg, logger.Slog(e.log))
	if err != nil {
		return nil, domain.ErrIOFailure.WithDetailsf("open %s store %s", scfg.Backend, scfg.Dir).Wrap(err)
	}

	reg := e.metrics.Registerer()
	if err := reg.Register(metric.NewStoreCollector(store, scfg.Backend)); err != nil {
		e.log.Warn("register store collector", "error", err)
	}
	if bs, ok := store.(*storage.BadgerStore); ok {
		bs.RegisterMetrics(reg)
	}

	e.log.Debug("store opened", "backend", scfg.Backend, "dir", scfg.Dir)
	e.store = store
	return store, nil
}

// logFor returns the logger for one command action, tagged with the
// command name and, when non-zero, the snapshot id.
func (e *env) logFor(c *cli.Context, id uint32) logger.Logger {
	ctx := logger.WithCommand(logger.WithLogger(c.Context, e.log), c.Command.Name)
	if id != 0 {
		ctx = logger.WithSnapshotID(ctx, id)
	}
	return logger.L(ctx).WithContext(ctx)
}

func (e *env) print(data any) error {
	return e.format.Format(e.stdout, data)
}

// PrintError prints err to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
