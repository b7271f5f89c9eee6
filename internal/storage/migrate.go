package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ezberapp/ezber/internal/domain"
)

// legacySnapshot mirrors the JSON layout older builds wrote to a single
// file, one object per logical key.
type legacySnapshot struct {
	Cards    []domain.Card    `json:"cards"`
	Folders  []domain.Folder  `json:"folders"`
	Settings *domain.Settings `json:"settings"`
}

// MigrateLegacy performs a one-time import of the legacy JSON snapshot file
// into the database. It only runs when the database holds no cards and no
// folders; a missing file means a fresh install and is not an error. It
// reports whether anything was imported.
func (db *DB) MigrateLegacy(path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	cards, err := db.LoadCards()
	if err != nil {
		return false, err
	}
	folders, err := db.LoadFolders()
	if err != nil {
		return false, err
	}
	if len(cards) > 0 || len(folders) > 0 {
		return false, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read legacy snapshot %s: %w", path, err)
	}

	var snap legacySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return false, fmt.Errorf("failed to decode legacy snapshot %s: %w", path, err)
	}

	if len(snap.Cards) > 0 {
		for i := range snap.Cards {
			if snap.Cards[i].Status == "" {
				snap.Cards[i].Status = domain.StatusLibrary
			}
		}
		if err := db.SaveCards(snap.Cards); err != nil {
			return false, err
		}
	}
	if len(snap.Folders) > 0 {
		if err := db.SaveFolders(snap.Folders); err != nil {
			return false, err
		}
	}
	if snap.Settings != nil {
		if err := db.SaveSettings(*snap.Settings); err != nil {
			return false, err
		}
	}

	return len(snap.Cards) > 0 || len(snap.Folders) > 0 || snap.Settings != nil, nil
}
