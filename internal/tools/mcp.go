package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cerplabs/memoryd/pkg/version"
)

// Server registers every Service method as an MCP tool and runs the
// protocol loop: one mcp.AddTool call per tool, a thin per-tool handler
// that validates nothing beyond what Service already does and converts a
// core error into the {error, is_error} shape the MCP SDK renders for a
// failed tool call.
type Server struct {
	mcp     *mcp.Server
	service *Service
	logger  *slog.Logger
}

// NewServer builds an MCP server wrapping service and registers every tool.
func NewServer(service *Service) *Server {
	s := &Server{
		service: service,
		logger:  slog.Default().With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "memoryd",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, e.g. for tests that drive it
// over an in-memory transport.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "store",
		Description: "Store a piece of text as a memory. Runs dedup-on-write: an exact repeat is a no-op, a near-duplicate is merged into the existing memory, otherwise a new memory is created.",
	}, s.handleStore)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid vector+keyword search over stored memories, ranked by a weighted fusion of semantic and lexical relevance.",
	}, s.handleSearch)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get",
		Description: "Fetch a single memory by id.",
	}, s.handleGet)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list",
		Description: "List memories with optional tag/source/recency filters.",
	}, s.handleList)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update",
		Description: "Update a subset of a memory's fields; updating content re-chunks and re-embeds it.",
	}, s.handleUpdate)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete",
		Description: "Delete a memory and its chunks.",
	}, s.handleDelete)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cleanup",
		Description: "Delete memories older than a cutoff; dry-run by default.",
	}, s.handleCleanup)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "feedback",
		Description: "Record a usefulness rating on a memory, adjusting its importance score or tags.",
	}, s.handleFeedback)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "bulk_delete",
		Description: "Delete every memory matching a tag/project/age filter. Requires confirm=true.",
	}, s.handleBulkDelete)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export",
		Description: "Export memories as a portable json or markdown payload.",
	}, s.handleExport)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "import",
		Description: "Import memories from a payload previously produced by export.",
	}, s.handleImport)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_add",
		Description: "Queue a background task for the scheduler to run.",
	}, s.handleTaskAdd)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_list",
		Description: "List queued and completed tasks.",
	}, s.handleTaskList)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_results",
		Description: "Fetch execution results for a task, or recent results across all tasks.",
	}, s.handleTaskResults)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_cancel",
		Description: "Cancel a pending task. Running tasks cannot be cancelled.",
	}, s.handleTaskCancel)

	s.logger.Info("mcp tools registered", slog.Int("count", 15))
}

func (s *Server) handleStore(ctx context.Context, _ *mcp.CallToolRequest, in StoreInput) (*mcp.CallToolResult, *StoreOutput, error) {
	out, err := s.service.Store(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "store", err)
	}
	return nil, out, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, *SearchOutput, error) {
	out, err := s.service.Search(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "search", err)
	}
	return nil, out, nil
}

func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, in GetInput) (*mcp.CallToolResult, *GetOutput, error) {
	out, err := s.service.Get(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "get", err)
	}
	return nil, out, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, *ListOutput, error) {
	out, err := s.service.List(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "list", err)
	}
	return nil, out, nil
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, in UpdateInput) (*mcp.CallToolResult, *UpdateOutput, error) {
	out, err := s.service.Update(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "update", err)
	}
	return nil, out, nil
}

func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, in DeleteInput) (*mcp.CallToolResult, *DeleteOutput, error) {
	out, err := s.service.Delete(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "delete", err)
	}
	return nil, out, nil
}

func (s *Server) handleCleanup(ctx context.Context, _ *mcp.CallToolRequest, in CleanupInput) (*mcp.CallToolResult, *CleanupOutput, error) {
	out, err := s.service.Cleanup(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "cleanup", err)
	}
	return nil, out, nil
}

func (s *Server) handleFeedback(ctx context.Context, _ *mcp.CallToolRequest, in FeedbackInput) (*mcp.CallToolResult, *FeedbackOutput, error) {
	out, err := s.service.Feedback(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "feedback", err)
	}
	return nil, out, nil
}

func (s *Server) handleBulkDelete(ctx context.Context, _ *mcp.CallToolRequest, in BulkDeleteInput) (*mcp.CallToolResult, *BulkDeleteOutput, error) {
	out, err := s.service.BulkDelete(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "bulk_delete", err)
	}
	return nil, out, nil
}

func (s *Server) handleExport(ctx context.Context, _ *mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, *ExportOutput, error) {
	out, err := s.service.Export(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "export", err)
	}
	return nil, out, nil
}

func (s *Server) handleImport(ctx context.Context, _ *mcp.CallToolRequest, in ImportInput) (*mcp.CallToolResult, *ImportOutput, error) {
	out, err := s.service.Import(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "import", err)
	}
	return nil, out, nil
}

func (s *Server) handleTaskAdd(ctx context.Context, _ *mcp.CallToolRequest, in TaskAddInput) (*mcp.CallToolResult, *TaskAddOutput, error) {
	out, err := s.service.TaskAdd(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "task_add", err)
	}
	return nil, out, nil
}

func (s *Server) handleTaskList(ctx context.Context, _ *mcp.CallToolRequest, in TaskListInput) (*mcp.CallToolResult, *TaskListOutput, error) {
	out, err := s.service.TaskList(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "task_list", err)
	}
	return nil, out, nil
}

func (s *Server) handleTaskResults(ctx context.Context, _ *mcp.CallToolRequest, in TaskResultsInput) (*mcp.CallToolResult, *TaskResultsOutput, error) {
	out, err := s.service.TaskResults(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "task_results", err)
	}
	return nil, out, nil
}

func (s *Server) handleTaskCancel(ctx context.Context, _ *mcp.CallToolRequest, in TaskCancelInput) (*mcp.CallToolResult, *TaskCancelOutput, error) {
	out, err := s.service.TaskCancel(ctx, &in)
	if err != nil {
		return nil, nil, mapError(s.logger, "task_cancel", err)
	}
	return nil, out, nil
}

// Serve runs the server until ctx is canceled. Only the stdio transport is
// wired; memoryd's RPC surface is a local subprocess, not a network service.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting mcp server", slog.String("transport", transport))
	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
