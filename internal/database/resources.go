package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
)

// ResourceRepository stores dashboard resources (card modules loaded by the frontend).
type ResourceRepository struct {
	db *DB
}

// NewResourceRepository creates a new resource repository.
func NewResourceRepository(db *DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Ping reports whether the store can be used.
func (r *ResourceRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// List returns every resource.
func (r *ResourceRepository) List(ctx context.Context) ([]models.CardResource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, res_type, url FROM lovelace_resources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.CardResource
	for rows.Next() {
		var res models.CardResource
		if err := rows.Scan(&res.ID, &res.ResType, &res.URL); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Create adds a resource and returns it with its new id.
func (r *ResourceRepository) Create(ctx context.Context, resType, url string) (models.CardResource, error) {
	res := models.CardResource{ID: uuid.NewString(), ResType: resType, URL: url}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lovelace_resources (id, res_type, url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, res.ID, res.ResType, res.URL, now, now)
	if err != nil {
		return models.CardResource{}, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

// UpdateURL points an existing resource at a new url.
func (r *ResourceRepository) UpdateURL(ctx context.Context, id, url string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE lovelace_resources SET url = $2, updated_at = $3 WHERE id = $1`, id, url, time.Now())
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

// Delete removes a resource.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lovelace_resources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}
