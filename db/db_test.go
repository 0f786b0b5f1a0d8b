package db

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateIdempotent(t *testing.T) {
	database := openTestDB(t)
	// Running the embedded migration twice must be a no-op.
	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestKVRoundTrip(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	if err := SetKV(ctx, database, "live:testchan", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := GetKV(ctx, database, "live:testchan")
	if err != nil || v != "1" {
		t.Fatalf("get = %q, %v; want 1, nil", v, err)
	}
	v, err = GetKV(ctx, database, "missing-key")
	if err != nil || v != "" {
		t.Fatalf("missing key = %q, %v; want empty, nil", v, err)
	}
}
