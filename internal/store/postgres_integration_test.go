package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := RollbackMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply up migrations (idempotent): %v", err)
	}
}

func TestSessionsPostgres(t *testing.T) {
	s := NewPostgresStore(openTestDB(t))
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SaveSession(ctx, "s1", []byte(`{"id":"s1","rankedIdeas":[]}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSession(ctx, "s1", []byte(`{"id":"s1","rankedIdeas":[{"idea":"a"}]}`)); err != nil {
		t.Fatalf("save again: %v", err)
	}
	session, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(string(session.Payload), `"idea": "a"`) {
		t.Fatalf("expected updated payload, got %s", session.Payload)
	}

	ids, err := s.ListSessionIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("expected [s1], got %v", ids)
	}
}

func TestRankingSubmissionsPostgres(t *testing.T) {
	s := NewPostgresStore(openTestDB(t))
	ctx := context.Background()

	if err := s.SaveSession(ctx, "s1", []byte(`{"id":"s1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	sub := RankingSubmission{SessionID: "s1", SubmittedBy: "Ada", Ranking: []string{"b", "a"}}
	if err := s.InsertRankingSubmission(ctx, &sub); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sub.ID == "" || sub.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set, got %+v", sub)
	}

	subs, err := s.ListRankingSubmissions(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 || subs[0].SubmittedBy != "Ada" || len(subs[0].Ranking) != 2 || subs[0].Ranking[0] != "b" {
		t.Fatalf("unexpected submissions: %+v", subs)
	}
}
