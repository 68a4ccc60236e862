package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	for i, stmt := range migrations {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("migration %d is not idempotent: %s", i, stmt)
		}
	}
}

// openTestDB connects to TEST_DATABASE_URL and skips when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestEntryRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewEntryRepository(db)
	ctx := context.Background()

	target := "todo.test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	entry := &models.Entry{
		Title:           "Test",
		TargetEntityID:  target,
		ResetTime:       "05:00:00",
		DisplayPosition: models.DisplayPositionBefore,
		DisplayHours:    2,
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), entry.ID) })

	dup := *entry
	dup.ID = uuid.Nil
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("Expected ErrDuplicateEntry, got %v", err)
	}

	found, err := repo.FindByUniqueID(ctx, models.UniqueID(target, "05:00:00"))
	if err != nil || found.ID != entry.ID {
		t.Fatalf("FindByUniqueID: %v %+v", err, found)
	}

	entry.ResetTime = "06:00:00"
	if err := repo.Update(ctx, entry); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ResetTime != "06:00:00" || got.UniqueID() != models.UniqueID(target, "06:00:00") {
		t.Errorf("Update not persisted: %+v", got)
	}

	if err := repo.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, entry.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound after delete, got %v", err)
	}
}

func TestResourceRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewResourceRepository(db)
	ctx := context.Background()

	res, err := repo.Create(ctx, models.ResourceTypeModule, "/todo_list/test-card.js?v=1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), res.ID) })

	if err := repo.UpdateURL(ctx, res.ID, "/todo_list/test-card.js?v=2"); err != nil {
		t.Fatalf("UpdateURL: %v", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range all {
		if r.ID == res.ID && r.Version() != "2" {
			t.Errorf("Expected version 2, got %s", r.Version())
		}
	}
}
