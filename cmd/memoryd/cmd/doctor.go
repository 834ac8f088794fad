package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/store"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

type doctorCheck struct {
	name string
	ok   bool
	info string
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that memoryd can open its databases and reach its embedder",
		Long: `doctor runs a handful of local diagnostics: that the configured data
directory is writable, that the global database opens and migrates cleanly,
and whether the configured embedder is reachable. Embedder reachability is
a warning, never a failure; an unreachable embedder is not replaced by
another one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context())
		},
	}
	return cmd
}

func runDoctor(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var checks []doctorCheck

	checks = append(checks, checkDataDirWritable(cfg.Paths.DataDir))
	checks = append(checks, checkGlobalDatabase(cfg))
	checks = append(checks, checkEmbedder(ctx, cfg))

	failed := false
	for _, c := range checks {
		if c.ok {
			okColor.Printf("  ok    %s", c.name)
		} else {
			failColor.Printf("  FAIL  %s", c.name)
			failed = true
		}
		if c.info != "" {
			fmt.Printf(" — %s", c.info)
		}
		fmt.Println()
	}

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func checkDataDirWritable(dataDir string) doctorCheck {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return doctorCheck{name: "data directory writable", ok: false, info: err.Error()}
	}
	probe := filepath.Join(dataDir, ".memoryd-doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return doctorCheck{name: "data directory writable", ok: false, info: err.Error()}
	}
	_ = os.Remove(probe)
	return doctorCheck{name: "data directory writable", ok: true, info: dataDir}
}

func checkGlobalDatabase(cfg *config.Config) doctorCheck {
	manager := store.NewManager(cfg.Paths.DataDir, cfg.Embeddings.Dimensions)
	defer func() { _ = manager.CloseAll() }()

	h, err := manager.Global()
	if err != nil {
		return doctorCheck{name: "global database opens", ok: false, info: err.Error()}
	}
	info := "fts5+vector search"
	if !h.VecAvailable() {
		info = "fts5 only, vector search degraded"
	}
	return doctorCheck{name: "global database opens", ok: true, info: info}
}

func checkEmbedder(ctx context.Context, cfg *config.Config) doctorCheck {
	name := "embedder reachable (" + cfg.Embeddings.Provider + ")"
	embedder, err := buildEmbedder(ctx, cfg, nil)
	if err != nil {
		return doctorCheck{name: name, ok: false, info: err.Error()}
	}
	defer embedder.Close()

	if !embedder.Available(ctx) {
		warnColor.Fprintln(os.Stderr, "  warn  embedder unavailable")
		return doctorCheck{name: name, ok: true, info: "unavailable"}
	}
	return doctorCheck{name: name, ok: true, info: embedder.ModelName()}
}
