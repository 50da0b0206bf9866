package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wasmsnap-go/internal/config"
	"github.com/yndnr/wasmsnap-go/internal/core/domain"
	"github.com/yndnr/wasmsnap-go/internal/storage/bundle"
	"github.com/yndnr/wasmsnap-go/pkg/crypto/adaptive"
)

func bundleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "passphrase-file",
			Aliases: []string{"p"},
			Usage:   "Read the bundle passphrase from FILE (overrides bundle.passphrase)",
		},
	}
}

// ExportCommand writes the artifacts of one or more snapshots to a bundle.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write snapshots and their diff log chains to a bundle",
		ArgsUsage: "ID [ID...]",
		Flags: append(bundleFlags(),
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"f"},
				Usage:    "Bundle file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "cipher",
				Usage: "Seal cipher: auto, aes-gcm, chacha20-poly1305",
			},
			&cli.StringFlag{
				Name:  "level",
				Usage: "zstd level: fastest, default, better, best",
			},
		),
		Action: bundleExport,
	}
}

// ImportCommand unpacks a bundle into the store.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Unpack a bundle into the snapshot store",
		ArgsUsage: "FILE",
		Flags:     bundleFlags(),
		Action:    bundleImport,
	}
}

// bundleOptions applies the command flags over the bundle section.
func bundleOptions(c *cli.Context, cfg *config.Config) (bundle.Options, error) {
	opts := cfg.BundleOptions()

	if path := c.String("passphrase-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("read passphrase: %w", err)
		}
		opts.Passphrase = trimNewline(data)
	}
	if c.IsSet("cipher") {
		ct, err := adaptive.ParseCipherType(c.String("cipher"))
		if err != nil {
			return opts, domain.ErrInvalidConfig.Wrap(err)
		}
		opts.Cipher = ct
	}
	if c.IsSet("level") {
		lvl, err := config.BundleLevel(c.String("level"))
		if err != nil {
			return opts, domain.ErrInvalidConfig.Wrap(err)
		}
		opts.Level = lvl
	}
	return opts, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func bundleExport(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return fmt.Errorf("export: snapshot ID required")
	}
	ids := make([]uint32, 0, c.NArg())
	for i := 0; i < c.NArg(); i++ {
		id, err := parseID(c, i)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	opts, err := bundleOptions(c, e.cfg)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	out := c.String("out")
	tmp, err := os.CreateTemp(filepath.Dir(out), ".wasmsnap-bundle-*")
	if err != nil {
		return domain.ErrIOFailure.WithDetails(out).Wrap(err)
	}
	defer os.Remove(tmp.Name())

	st, err := bundle.Export(store, ids, tmp, opts)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.ErrIOFailure.WithDetails(out).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ErrIOFailure.WithDetails(out).Wrap(err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return domain.ErrIOFailure.WithDetails(out).Wrap(err)
	}

	e.logFor(c, 0).Info("bundle exported", "file", out, "artifacts", len(st.Artifacts), "bytes", st.Bytes, "sealed", st.Sealed)
	return e.print(st)
}

func bundleImport(c *cli.Context) error {
	e, err := getEnv(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("import: bundle FILE required")
	}

	opts, err := bundleOptions(c, e.cfg)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.ErrIOFailure.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	st, err := bundle.Import(f, store, opts)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	e.logFor(c, 0).Info("bundle imported", "file", path, "artifacts", len(st.Artifacts), "bytes", st.Bytes, "sealed", st.Sealed)
	return e.print(st)
}
