package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProgressNotesImmutabilityMigrationUsesBlockingTriggers(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0002_progress_notes_immutability_trigger.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	expectedSnippets := []string{
		"progress_notes_immutable_guard",
		"RAISE EXCEPTION",
		"CREATE TRIGGER trg_progress_notes_block_update",
		"CREATE TRIGGER trg_progress_notes_block_delete",
	}
	for _, snippet := range expectedSnippets {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
	if strings.Contains(sqlText, "DO INSTEAD NOTHING") {
		t.Fatalf("expected hard-fail append-only guard, found silent DO INSTEAD NOTHING rule")
	}
}
