package tools

import (
	"errors"
	"fmt"
	"log/slog"

	memerrors "github.com/cerplabs/memoryd/internal/errors"
)

// ToolError is the shape a dispatch handler returns to the MCP SDK on
// failure; the SDK renders it as an is_error tool result carrying Message.
type ToolError struct {
	Message string
}

func (e *ToolError) Error() string { return e.Message }

// mapError converts a core error into a ToolError and logs it, collapsing
// every error category to the single {error, is_error} shape this surface
// exposes.
func mapError(logger *slog.Logger, op string, err error) *ToolError {
	if err == nil {
		return nil
	}

	var me *memerrors.MemoryError
	msg := err.Error()
	if errors.As(err, &me) {
		switch me.Category {
		case memerrors.CategoryNotFound:
			logger.Warn("tool call: not found", slog.String("op", op), slog.String("error", msg))
		case memerrors.CategoryValidation:
			logger.Warn("tool call: invalid input", slog.String("op", op), slog.String("error", msg))
		default:
			logger.Error("tool call failed", slog.String("op", op), slog.String("error", msg))
		}
	} else {
		logger.Error("tool call failed", slog.String("op", op), slog.String("error", msg))
	}

	return &ToolError{Message: msg}
}

func invalidParams(format string, args ...any) *ToolError {
	return &ToolError{Message: fmt.Sprintf(format, args...)}
}
