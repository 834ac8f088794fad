package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/project"
	"github.com/cerplabs/memoryd/internal/store"
	"github.com/cerplabs/memoryd/pkg/version"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgWhite)
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print memoryd's configuration and database counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus()
		},
	}
	return cmd
}

func runStatus() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	headingColor.Println("memoryd status")
	labelColor.Printf("  version:      %s\n", version.Version)
	labelColor.Printf("  data dir:     %s\n", cfg.Paths.DataDir)
	labelColor.Printf("  embeddings:   %s (%d dims)\n", cfg.Embeddings.Provider, cfg.Embeddings.Dimensions)
	labelColor.Printf("  scheduler:    enabled=%t cron=%q\n", cfg.Scheduler.Enabled, cfg.Scheduler.Cron)

	if cwd, err := os.Getwd(); err == nil {
		if info, err := project.Detect(cwd); err == nil {
			name := info.Name
			if name == "" {
				name = project.DetectName(cwd)
			}
			labelColor.Printf("  this project: %s (%s)\n", info.ID, name)
		}
	}

	manager := store.NewManager(cfg.Paths.DataDir, cfg.Embeddings.Dimensions)
	defer func() { _ = manager.CloseAll() }()

	global, err := manager.Global()
	if err != nil {
		return fmt.Errorf("open global database: %w", err)
	}

	memories := store.NewMemoryRepository(global)
	_, total, err := memories.List(context.Background(), store.MemoryFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("count global memories: %w", err)
	}
	labelColor.Printf("  global memories: %d\n", total)
	labelColor.Printf("  vector search:   %t\n", global.VecAvailable())

	ids, err := manager.ProjectIDs()
	if err != nil {
		return fmt.Errorf("list project databases: %w", err)
	}
	labelColor.Printf("  project databases: %d\n", len(ids))
	for _, id := range ids {
		labelColor.Printf("    - %s (%s)\n", id, filepath.Join(cfg.Paths.DataDir, "projects", id, "project.db"))
	}

	return nil
}
