// Package reset returns the completed items of a host todo list to needs_action.
package reset

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrTargetNotFound is returned when the target list does not exist on the host.
var ErrTargetNotFound = errors.New("target todo list not found")

// ListClient is the subset of the host client a reset needs.
type ListClient interface {
	EntityExists(ctx context.Context, entityID string) (bool, error)
	GetItems(ctx context.Context, entityID string) ([]models.TodoItem, error)
	UpdateItem(ctx context.Context, entityID, uid string, status models.ItemStatus) error
}

// Result summarizes one run.
type Result struct {
	Total     int      `json:"total"`
	Reset     int      `json:"reset"`
	Skipped   int      `json:"skipped"`
	ResetUIDs []string `json:"reset_uids,omitempty"`
}

// Resetter runs the reset operation against the host.
type Resetter struct {
	client ListClient
	logger *zap.Logger
}

// New creates a Resetter.
func New(client ListClient, logger *zap.Logger) *Resetter {
	return &Resetter{client: client, logger: logger}
}

// Reset marks every completed item of target as needs_action. Updates are
// issued one at a time, each finishing before the next starts. The first
// failing update aborts the run; the returned Result then describes the
// updates that did go through.
func (r *Resetter) Reset(ctx context.Context, target string) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "reset.Reset")
	defer span.End()
	span.SetAttributes(attribute.String("todo.entity_id", target))

	var result Result

	exists, err := r.client.EntityExists(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "existence check failed")
		return result, fmt.Errorf("check %s: %w", target, err)
	}
	if !exists {
		r.logger.Error("reset_target_not_found", zap.String("entity_id", logger.SanitizeEntityID(target)))
		span.SetStatus(codes.Error, ErrTargetNotFound.Error())
		return result, fmt.Errorf("%s: %w", target, ErrTargetNotFound)
	}

	items, err := r.client.GetItems(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get_items failed")
		return result, err
	}
	result.Total = len(items)

	for _, item := range items {
		if !item.IsCompleted() {
			result.Skipped++
			continue
		}
		if err := r.client.UpdateItem(ctx, target, item.UID, models.ItemStatusNeedsAction); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update_item failed")
			r.logger.Error("reset_item_update_failed",
				zap.String("entity_id", logger.SanitizeEntityID(target)),
				zap.String("item_uid", logger.SanitizeString(item.UID, logger.MaxIDLength)),
				zap.Int("reset_before_failure", result.Reset),
				zap.Error(err))
			return result, err
		}
		result.Reset++
		result.ResetUIDs = append(result.ResetUIDs, item.UID)
	}

	span.SetAttributes(
		attribute.Int("todo.items.total", result.Total),
		attribute.Int("todo.items.reset", result.Reset),
	)
	r.logger.Info("reset_completed",
		zap.String("entity_id", logger.SanitizeEntityID(target)),
		zap.Int("total", result.Total),
		zap.Int("reset", result.Reset))

	return result, nil
}
