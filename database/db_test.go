package database_test

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/CrowderSoup/flow-board/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDocumentSetAndGetCollection(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	if err := docs.Set("boards/b1", json.RawMessage(`{"id":"b1","name":"One"}`)); err != nil {
		t.Fatalf("Set b1: %v", err)
	}
	if err := docs.Set("/boards/b2/", json.RawMessage(`{"id":"b2","name":"Two"}`)); err != nil {
		t.Fatalf("Set b2: %v", err)
	}
	if err := docs.Set("boards/b1/columns/c1", json.RawMessage(`{"id":"c1"}`)); err != nil {
		t.Fatalf("Set c1: %v", err)
	}

	boards, err := docs.GetCollection("boards")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("expected 2 boards, got %d", len(boards))
	}

	var first map[string]string
	if err := json.Unmarshal(boards[0], &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["id"] != "b1" {
		t.Errorf("first id = %q, want b1", first["id"])
	}

	columns, err := docs.GetCollection("boards/b1/columns")
	if err != nil {
		t.Fatalf("GetCollection columns: %v", err)
	}
	if len(columns) != 1 {
		t.Errorf("expected 1 column, got %d", len(columns))
	}

	empty, err := docs.GetCollection("boards/nope/columns")
	if err != nil {
		t.Fatalf("GetCollection empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty collection, got %d", len(empty))
	}
}

func TestDocumentSetReplaces(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	if err := docs.Set("boards/b1", json.RawMessage(`{"id":"b1","name":"One","extra":true}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := docs.Set("boards/b1", json.RawMessage(`{"id":"b1","name":"Renamed"}`)); err != nil {
		t.Fatalf("Set again: %v", err)
	}

	raw, err := docs.Get("boards/b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["name"] != "Renamed" {
		t.Errorf("name = %v, want Renamed", doc["name"])
	}
	if _, ok := doc["extra"]; ok {
		t.Error("Set should replace the whole document")
	}
}

func TestDocumentUpdateMerges(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	if err := docs.Set("boards/b1", json.RawMessage(`{"id":"b1","name":"One"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := docs.Update("boards/b1", map[string]json.RawMessage{
		"deletedAt": json.RawMessage(`"2024-01-01T00:00:00Z"`),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	raw, err := docs.Get("boards/b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["name"] != "One" {
		t.Errorf("name = %v, want One", doc["name"])
	}
	if doc["deletedAt"] != "2024-01-01T00:00:00Z" {
		t.Errorf("deletedAt = %v", doc["deletedAt"])
	}
}

func TestDocumentUpdateMissing(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	err := docs.Update("boards/missing", map[string]json.RawMessage{"name": json.RawMessage(`"x"`)})
	if !errors.Is(err, database.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentDelete(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	if err := docs.Set("boards/b1/columns/c1/cards/x", json.RawMessage(`{"id":"x"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := docs.Delete("boards/b1/columns/c1/cards/x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := docs.Get("boards/b1/columns/c1/cards/x"); !errors.Is(err, database.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound after delete, got %v", err)
	}
	if err := docs.Delete("boards/b1/columns/c1/cards/x"); err != nil {
		t.Errorf("deleting a missing document should succeed, got %v", err)
	}
}

func TestDocumentPathValidation(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	tests := []struct {
		name string
		run  func() error
	}{
		{"set on collection path", func() error { return docs.Set("boards", json.RawMessage(`{}`)) }},
		{"set with empty segment", func() error { return docs.Set("boards//b1", json.RawMessage(`{}`)) }},
		{"get collection on document path", func() error { _, err := docs.GetCollection("boards/b1"); return err }},
		{"delete empty path", func() error { return docs.Delete("") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, database.ErrInvalidPath) {
				t.Errorf("expected ErrInvalidPath, got %v", err)
			}
		})
	}

	if err := docs.Set("boards/b1", json.RawMessage(`[1,2]`)); err == nil {
		t.Error("expected error for non-object document")
	}
}

func TestPathKinds(t *testing.T) {
	if !database.IsCollectionPath("boards/b1/columns") {
		t.Error("boards/b1/columns should be a collection path")
	}
	if !database.IsDocumentPath("boards/b1/columns/c1") {
		t.Error("boards/b1/columns/c1 should be a document path")
	}
	if database.IsDocumentPath("") || database.IsCollectionPath("") {
		t.Error("empty path is neither")
	}
}

func TestStateSaveAndLoad(t *testing.T) {
	state := database.NewStateService(openTestDB(t))

	var missing []string
	found, err := state.Load("boards-storage", &missing)
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if found {
		t.Error("expected missing key to report false")
	}

	if err := state.Save("boards-storage", []string{"a", "b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := state.Save("boards-storage", []string{"c"}); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	var got []string
	found, err = state.Load("boards-storage", &got)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("got %v, want [c]", got)
	}
}

func TestDocumentSetRejectsNonObjects(t *testing.T) {
	docs := database.NewDocumentService(openTestDB(t))

	for _, body := range []string{`[1,2]`, `"text"`, `null`, `{broken`} {
		if err := docs.Set("boards/b1", json.RawMessage(body)); !errors.Is(err, database.ErrInvalidDocument) {
			t.Errorf("Set(%s): expected ErrInvalidDocument, got %v", body, err)
		}
	}
	if _, err := docs.Get("boards/b1"); !errors.Is(err, database.ErrDocumentNotFound) {
		t.Errorf("rejected document was stored: %v", err)
	}
}
