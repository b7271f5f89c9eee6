package deck

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezberapp/ezber/internal/domain"
	"github.com/ezberapp/ezber/internal/storage"
	"github.com/ezberapp/ezber/internal/store"
)

// Summary reports what one import run did.
type Summary struct {
	Added   int
	Skipped int
	Errors  []error
}

// Importer reconciles configured deck sources into the card store. Cards
// already present (by content fingerprint) are skipped; cards the user
// deleted from a deck file are never removed, the store owns them once
// imported.
type Importer struct {
	db       *storage.DB
	cards    *store.Store
	logger   *slog.Logger
	reposDir string
}

// NewImporter builds an importer that checks out git sources under reposDir.
func NewImporter(db *storage.DB, cards *store.Store, logger *slog.Logger, reposDir string) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{db: db, cards: cards, logger: logger, reposDir: reposDir}
}

// SyncAll walks every configured source and imports whatever is new.
func (imp *Importer) SyncAll() Summary {
	var total Summary

	sources, err := imp.db.GetAllSources()
	if err != nil {
		imp.logger.Error("failed to load deck sources", "error", err)
		total.Errors = append(total.Errors, err)
		return total
	}
	if len(sources) == 0 {
		imp.logger.Info("no deck sources configured")
		return total
	}

	for _, source := range sources {
		imp.logger.Info("importing deck source", "id", source.ID, "kind", source.Kind, "path", source.Path)

		localPath := source.Path
		if source.Kind == "git" {
			localPath, err = gitURLToLocalPath(imp.reposDir, source.Path)
			if err != nil {
				imp.logger.Error("bad git deck URL", "url", source.Path, "error", err)
				total.Errors = append(total.Errors, err)
				continue
			}
			if err := syncGit(imp.logger, source.Path, localPath); err != nil {
				imp.logger.Error("failed to sync deck repository", "url", source.Path, "error", err)
				total.Errors = append(total.Errors, err)
				continue
			}
		}

		summary := imp.ImportDir(localPath)
		total.Added += summary.Added
		total.Skipped += summary.Skipped
		total.Errors = append(total.Errors, summary.Errors...)

		if err := imp.db.UpdateSourceLastScanned(source.ID); err != nil {
			imp.logger.Warn("failed to stamp deck source", "source_id", source.ID, "error", err)
		}
	}

	imp.logger.Info("deck import complete",
		"added", total.Added,
		"skipped", total.Skipped,
		"errors", len(total.Errors),
	)
	return total
}

// ImportDir imports every deck file under dir into the library.
func (imp *Importer) ImportDir(dir string) Summary {
	var summary Summary

	seen := make(map[string]bool)
	for _, c := range imp.cards.Cards() {
		seen[CardFingerprint(c)] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDeckFile(d.Name()) {
			return nil
		}

		entries, parseErr := ParseFile(path)
		if parseErr != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, entry := range entries {
			fp := Fingerprint(entry)
			if seen[fp] {
				summary.Skipped++
				continue
			}
			seen[fp] = true
			imp.cards.Add(domain.Card{
				Meaning: entry.Meaning,
				Word:    entry.Word,
				Keyword: entry.Keyword,
				Story:   entry.Story,
				Status:  domain.StatusLibrary,
			})
			summary.Added++
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		summary.Errors = append(summary.Errors, fmt.Errorf("walking %s: %w", dir, walkErr))
	}

	return summary
}

func isDeckFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".deck") || strings.HasSuffix(lower, ".md")
}
