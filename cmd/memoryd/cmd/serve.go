package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/internal/healthz"
	"github.com/cerplabs/memoryd/internal/memory"
	"github.com/cerplabs/memoryd/internal/scheduler"
	"github.com/cerplabs/memoryd/internal/store"
	"github.com/cerplabs/memoryd/internal/tiering"
	"github.com/cerplabs/memoryd/internal/tools"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `serve starts the memoryd MCP server, exposing the store/search/task
tool surface over a single transport. stdout carries JSON-RPC exclusively
once the server starts; use 'memoryd doctor' or 'memoryd status' for
diagnostics instead of relying on serve's own output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport to serve on (only stdio is supported)")
	return cmd
}

func runServe(ctx context.Context, transport string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	manager := store.NewManager(cfg.Paths.DataDir, cfg.Embeddings.Dimensions)
	defer func() {
		if err := manager.CloseAll(); err != nil {
			slog.Warn("close_databases_failed", slog.String("error", err.Error()))
		}
	}()

	global, err := manager.Global()
	if err != nil {
		return fmt.Errorf("open global database: %w", err)
	}

	embedCache := store.NewEmbeddingCacheRepository(global, cfg.Embeddings.Model)
	embedder, err := buildEmbedder(ctx, cfg, embedCache)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}
	defer embedder.Close()

	service := tools.NewService(manager, embedder, cfg)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		taskRepo := store.NewTaskRepository(global)
		resultRepo := store.NewTaskResultRepository(global)
		sched = scheduler.New(taskRepo, resultRepo, buildRunner(cfg), cfg.Scheduler.Cron, storeResultAsMemory(service))
		sched.Start(ctx)
		defer sched.Stop()
	}

	globalMemories := store.NewMemoryRepository(global)
	globalChunks := store.NewChunkRepository(global)
	globalTags := store.NewTagRepository(global)
	tieringRunner := tiering.NewRunner(&tiering.Job{
		Handle:   global,
		Memories: globalMemories,
		Chunks:   globalChunks,
		Embedder: embedder,
		Pipeline: &memory.Pipeline{
			Memories:      globalMemories,
			Chunks:        globalChunks,
			Tags:          globalTags,
			Embedder:      embedder,
			MaxTokens:     cfg.Chunk.MaxTokens,
			OverlapTokens: cfg.Chunk.OverlapTokens,
		},
	}, time.Hour, tiering.DefaultMaxConsolidationsPerRun)
	tieringRunner.Start(ctx)
	defer tieringRunner.Stop()

	if cfg.Server.HealthAddr != "" {
		mux := healthz.NewMux(healthz.Deps{Handle: global, Scheduler: sched})
		httpSrv := &http.Server{Addr: cfg.Server.HealthAddr, Handler: mux}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Warn("healthz_server_failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
	}

	server := tools.NewServer(service)
	return server.Serve(ctx, transport)
}

// storeResultAsMemory returns the scheduler completion callback: successful
// task output is stored back as an automation memory so overnight work
// surfaces in the next session's recall. Errors are logged, never
// propagated into the scheduler.
func storeResultAsMemory(service *tools.Service) scheduler.OnTaskComplete {
	return func(task *store.Task, result *scheduler.Result) {
		if result == nil || !result.Success || strings.TrimSpace(result.Output) == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, err := service.Store(ctx, &tools.StoreInput{
			Text:       result.Output,
			Project:    task.ProjectID,
			Source:     store.SourceAutomation,
			Tags:       []string{"task-result"},
			Metadata:   "task_id=" + task.ID,
			MemoryType: store.MemoryTypeEpisode,
		})
		if err != nil {
			slog.Warn("store_task_result_failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		}
	}
}

// buildRunner selects the task runner per config: an HTTP runner when an
// endpoint is configured, otherwise a CLI runner over RunnerCommand.
func buildRunner(cfg *config.Config) scheduler.Runner {
	if cfg.Scheduler.RunnerEndpoint != "" {
		return scheduler.NewHTTPRunner(scheduler.HTTPRunnerConfig{
			Endpoint:   cfg.Scheduler.RunnerEndpoint,
			Timeout:    cfg.SchedulerTimeout(),
			MaxRetries: cfg.Scheduler.MaxRetries,
		})
	}
	command := cfg.Scheduler.RunnerCommand
	if command == "" {
		command = "true"
	}
	return scheduler.NewCLIRunner(command)
}
