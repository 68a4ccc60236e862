// Package frontend hosts the bundled dashboard card and keeps its resource
// registration current.
package frontend

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/models"
	"go.uber.org/zap"
)

//go:embed assets
var assets embed.FS

// DefaultRetryInterval is how long Register waits between resource store checks.
const DefaultRetryInterval = 5 * time.Second

// ResourceStore is the dashboard resource collection.
type ResourceStore interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]models.CardResource, error)
	Create(ctx context.Context, resType, url string) (models.CardResource, error)
	UpdateURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// Registrar registers the card catalogue as dashboard resources.
type Registrar struct {
	store         ResourceStore
	cards         []models.Card
	clock         clock.Clock
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewRegistrar creates a registrar for the default card catalogue.
func NewRegistrar(store ResourceStore, clk clock.Clock, logger *zap.Logger) *Registrar {
	return &Registrar{
		store:         store,
		cards:         models.Cards,
		clock:         clk,
		retryInterval: DefaultRetryInterval,
		logger:        logger,
	}
}

// Register waits until the resource store is reachable, then makes sure
// every card has exactly one resource at its current version. Calling it
// again is a no-op once the resources are current.
func (r *Registrar) Register(ctx context.Context) error {
	if err := r.waitReady(ctx); err != nil {
		return err
	}

	existing, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	var ours []models.CardResource
	for _, res := range existing {
		if strings.HasPrefix(res.URL, models.URLBase) {
			ours = append(ours, res)
		}
	}

	for _, card := range r.cards {
		registered := false
		for _, res := range ours {
			if res.Path() != card.URL() {
				continue
			}
			registered = true
			if res.Version() == card.Version {
				r.logger.Debug("card_resource_current", zap.String("card", card.Name), zap.String("version", card.Version))
				continue
			}
			if err := r.store.UpdateURL(ctx, res.ID, card.VersionedURL()); err != nil {
				return err
			}
			r.logger.Info("card_resource_updated",
				zap.String("card", card.Name),
				zap.String("from_version", res.Version()),
				zap.String("to_version", card.Version))
		}

		if !registered {
			if _, err := r.store.Create(ctx, models.ResourceTypeModule, card.VersionedURL()); err != nil {
				return err
			}
			r.logger.Info("card_resource_registered", zap.String("card", card.Name), zap.String("version", card.Version))
		}
	}
	return nil
}

func (r *Registrar) waitReady(ctx context.Context) error {
	for {
		err := r.store.Ping(ctx)
		if err == nil {
			return nil
		}
		r.logger.Debug("resource_store_not_ready", zap.Duration("retry_in", r.retryInterval), zap.Error(err))

		wait := make(chan struct{})
		timer := r.clock.AfterFunc(r.retryInterval, func() { close(wait) })
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-wait:
		}
	}
}

// Unregister deletes every resource belonging to the card catalogue.
func (r *Registrar) Unregister(ctx context.Context) error {
	existing, err := r.store.List(ctx)
	if err != nil {
		return err
	}
	for _, card := range r.cards {
		for _, res := range existing {
			if !strings.HasPrefix(res.URL, card.URL()) {
				continue
			}
			if err := r.store.Delete(ctx, res.ID); err != nil {
				return err
			}
			r.logger.Info("card_resource_removed", zap.String("card", card.Name))
		}
	}
	return nil
}

// Handler serves the bundled card files under models.URLBase. Responses are
// not cached so a version bump is picked up on the next dashboard load.
func Handler() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	files := http.StripPrefix(models.URLBase, http.FileServer(http.FS(sub)))
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		files.ServeHTTP(w, req)
	})
}
