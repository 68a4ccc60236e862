package entity

import (
	"context"

	"github.com/benvon/todo-reset/internal/models"
)

// StateWriter is the host surface a HostPublisher writes through.
type StateWriter interface {
	SetState(ctx context.Context, entityID, state string, attributes map[string]any) error
	DeleteState(ctx context.Context, entityID string) error
}

// Publisher mirrors status snapshots somewhere observable.
type Publisher interface {
	Publish(ctx context.Context, s *models.StatusSnapshot) error
	Remove(ctx context.Context, entityID string) error
}

// HostPublisher writes the status entity into the host's state machine.
type HostPublisher struct {
	host StateWriter
}

func NewHostPublisher(host StateWriter) *HostPublisher {
	return &HostPublisher{host: host}
}

func (p *HostPublisher) Publish(ctx context.Context, s *models.StatusSnapshot) error {
	return p.host.SetState(ctx, s.EntityID, string(s.State), s.Attributes())
}

func (p *HostPublisher) Remove(ctx context.Context, entityID string) error {
	return p.host.DeleteState(ctx, entityID)
}
