package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ezberapp/ezber/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ezber.db"))
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFreshInstallIsEmpty(t *testing.T) {
	db := openTestDB(t)

	cards, err := db.LoadCards()
	if err != nil {
		t.Fatalf("LoadCards() error: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("fresh database returned %d cards", len(cards))
	}

	settings, err := db.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}
	if settings != nil {
		t.Errorf("fresh database returned settings %+v", settings)
	}
}

func TestCardRoundTrip(t *testing.T) {
	db := openTestDB(t)

	want := []domain.Card{
		{
			ID: "c1", FolderID: "f1", Meaning: "Araba", Word: "سيارة",
			Keyword: "SAYYARE", Story: "Sayyare gibi hızlı bir araba.",
			Status: domain.StatusActive, IntervalIndex: 3, NextReviewTime: 123456,
		},
		{ID: "c2", Meaning: "Kitap", Word: "كتاب", Status: domain.StatusLibrary},
	}
	if err := db.SaveCards(want); err != nil {
		t.Fatalf("SaveCards() error: %v", err)
	}

	got, err := db.LoadCards()
	if err != nil {
		t.Fatalf("LoadCards() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d cards, want 2", len(got))
	}
	byID := map[string]domain.Card{got[0].ID: got[0], got[1].ID: got[1]}
	if byID["c1"] != want[0] {
		t.Errorf("card c1 round trip mismatch:\n got %+v\nwant %+v", byID["c1"], want[0])
	}
	if byID["c2"] != want[1] {
		t.Errorf("card c2 round trip mismatch:\n got %+v\nwant %+v", byID["c2"], want[1])
	}

	// A second save replaces, never appends.
	if err := db.SaveCards(want[:1]); err != nil {
		t.Fatalf("SaveCards() error: %v", err)
	}
	got, err = db.LoadCards()
	if err != nil {
		t.Fatalf("LoadCards() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("after snapshot save got %d cards, want 1", len(got))
	}
}

func TestFolderAndSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	folders := []domain.Folder{{ID: "f1", Name: "Fiiller", CreatedAt: 77}}
	if err := db.SaveFolders(folders); err != nil {
		t.Fatalf("SaveFolders() error: %v", err)
	}
	gotFolders, err := db.LoadFolders()
	if err != nil {
		t.Fatalf("LoadFolders() error: %v", err)
	}
	if len(gotFolders) != 1 || gotFolders[0] != folders[0] {
		t.Errorf("folders round trip mismatch: %+v", gotFolders)
	}

	settings := domain.Settings{VoiceID: "ar-XA-Wavenet-B", TextModel: "gemini-2.5-pro"}
	if err := db.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() error: %v", err)
	}
	gotSettings, err := db.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}
	if gotSettings == nil || *gotSettings != settings {
		t.Errorf("settings round trip mismatch: %+v", gotSettings)
	}
}

func TestSources(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertSource("/decks/arabic", "local")
	if err != nil {
		t.Fatalf("InsertSource() error: %v", err)
	}
	if err := db.UpdateSourceLastScanned(id); err != nil {
		t.Fatalf("UpdateSourceLastScanned() error: %v", err)
	}

	sources, err := db.GetAllSources()
	if err != nil {
		t.Fatalf("GetAllSources() error: %v", err)
	}
	if len(sources) != 1 || sources[0].Path != "/decks/arabic" || sources[0].Kind != "local" {
		t.Fatalf("unexpected sources: %+v", sources)
	}
	if !sources[0].LastScanned.Valid {
		t.Error("last_scanned not stamped")
	}

	if err := db.DeleteSource(id); err != nil {
		t.Fatalf("DeleteSource() error: %v", err)
	}
	if err := db.DeleteSource(id); err != nil {
		t.Fatalf("DeleteSource() on missing id should be a no-op, got: %v", err)
	}
	sources, err = db.GetAllSources()
	if err != nil {
		t.Fatalf("GetAllSources() error: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources after delete, got %+v", sources)
	}
}

func TestMigrateLegacy(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "legacy.json")
	snap := map[string]any{
		"cards": []domain.Card{
			{ID: "c1", Meaning: "Su", Word: "ماء", Status: domain.StatusActive, NextReviewTime: 9},
			{ID: "c2", Meaning: "Ekmek", Word: "خبز"}, // no status in old snapshots
		},
		"folders":  []domain.Folder{{ID: "f1", Name: "Temel", CreatedAt: 1}},
		"settings": domain.Settings{VoiceID: "maged"},
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(snapPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := Open(filepath.Join(dir, "ezber.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	migrated, err := db.MigrateLegacy(snapPath)
	if err != nil {
		t.Fatalf("MigrateLegacy() error: %v", err)
	}
	if !migrated {
		t.Fatal("expected migration to import the snapshot")
	}

	cards, err := db.LoadCards()
	if err != nil {
		t.Fatalf("LoadCards() error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("migrated %d cards, want 2", len(cards))
	}
	for _, c := range cards {
		if c.ID == "c2" && c.Status != domain.StatusLibrary {
			t.Errorf("statusless legacy card imported as %q, want library", c.Status)
		}
	}

	// Second run must be a no-op: the database is populated now.
	migrated, err = db.MigrateLegacy(snapPath)
	if err != nil {
		t.Fatalf("MigrateLegacy() second run error: %v", err)
	}
	if migrated {
		t.Error("migration ran twice")
	}
}

func TestMigrateLegacyMissingFile(t *testing.T) {
	db := openTestDB(t)
	migrated, err := db.MigrateLegacy(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing legacy file should not error, got: %v", err)
	}
	if migrated {
		t.Error("migration reported work with no file present")
	}
}
