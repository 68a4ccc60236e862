package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrDuplicateEntry is returned when another entry already uses the same
	// target list and reset time.
	ErrDuplicateEntry = errors.New("entry already configured")
)

const entryColumns = `id, title, target_entity_id, reset_time, display_position, display_hours, created_at, updated_at`

// EntryRepository stores configured entries.
type EntryRepository struct {
	db *DB
}

// NewEntryRepository creates a new entry repository.
func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	e := &models.Entry{}
	var position string
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.TargetEntityID,
		&e.ResetTime,
		&position,
		&e.DisplayHours,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.DisplayPosition = models.DisplayPosition(position)
	return e, nil
}

// Create inserts a new entry, assigning its id and timestamps.
func (r *EntryRepository) Create(ctx context.Context, e *models.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reset_entries (id, title, target_entity_id, reset_time, unique_id, display_position, display_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.Title, e.TargetEntityID, e.ResetTime, e.UniqueID(), string(e.DisplayPosition), e.DisplayHours, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// GetByID returns the entry with id or ErrEntryNotFound.
func (r *EntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM reset_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// FindByUniqueID returns the entry configured for target and resetTime, or ErrEntryNotFound.
func (r *EntryRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*models.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM reset_entries WHERE unique_id = $1`, uniqueID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

// List returns every entry ordered by creation time.
func (r *EntryRepository) List(ctx context.Context) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM reset_entries ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Update rewrites an entry in place, keeping the unique id in sync.
func (r *EntryRepository) Update(ctx context.Context, e *models.Entry) error {
	e.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE reset_entries
		SET title = $2, target_entity_id = $3, reset_time = $4, unique_id = $5,
			display_position = $6, display_hours = $7, updated_at = $8
		WHERE id = $1
	`, e.ID, e.Title, e.TargetEntityID, e.ResetTime, e.UniqueID(), string(e.DisplayPosition), e.DisplayHours, e.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *EntryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reset_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
