package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	upPath, downPath, err := createMigration(dir, "add_scores", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(upPath) != "20250301120000_add_scores.up.sql" {
		t.Fatalf("expected timestamped up file, got %s", upPath)
	}
	if filepath.Base(downPath) != "20250301120000_add_scores.down.sql" {
		t.Fatalf("expected timestamped down file, got %s", downPath)
	}
	data, err := os.ReadFile(upPath)
	if err != nil {
		t.Fatalf("read up file: %v", err)
	}
	if string(data) != "-- add_scores up\n" {
		t.Fatalf("unexpected up file contents %q", data)
	}

	if _, _, err := createMigration(dir, "add_scores", now); err == nil {
		t.Fatalf("expected an error for an existing migration")
	}
}

func TestMigrationName(t *testing.T) {
	for name, ok := range map[string]bool{
		"create_words": true,
		"v2":           true,
		"":             false,
		"has space":    false,
		"Upper":        false,
	} {
		if got := migrationName.MatchString(name); got != ok {
			t.Fatalf("expected %q valid=%v, got %v", name, ok, got)
		}
	}
}
