package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/memoria/internal/digest"
	"github.com/conorfennell/memoria/internal/domain"
	"github.com/conorfennell/memoria/internal/gitsource"
	"github.com/conorfennell/memoria/internal/parser"
	"github.com/conorfennell/memoria/internal/storage"
)

// Store is the persistence the catalog needs.
type Store interface {
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	FindSourceByPath(ctx context.Context, path string) (*storage.Source, error)
	InsertSource(ctx context.Context, path, sourceType string) (int64, error)
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
	ContentDigests(ctx context.Context, sourceID int64) (map[string]string, error)
	UpsertContentUnit(ctx context.Context, u domain.ContentUnit, sourceID int64) error
	DeleteContentUnit(ctx context.Context, id string) error
}

// GitSyncFunc fetches a repository into a local directory.
type GitSyncFunc func(ctx context.Context, repoURL, localPath string, progress io.Writer) error

// Syncer reconciles fiche sources into the content catalog.
type Syncer struct {
	store    Store
	reposDir string
	gitSync  GitSyncFunc
	log      *slog.Logger
}

func NewSyncer(store Store, reposDir string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		store:    store,
		reposDir: reposDir,
		gitSync:  gitsource.Sync,
		log:      log.With("component", "catalog"),
	}
}

// Report summarises one source's reconciliation.
type Report struct {
	SourceID int64
	Path     string
	Parsed   int
	Updated  int
	Deleted  int
	Errors   []error
}

// AddSource registers a source, detecting whether it is a git repository.
// Adding an already registered path returns the existing ID.
func (s *Syncer) AddSource(ctx context.Context, path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("source path cannot be empty")
	}
	existing, err := s.store.FindSourceByPath(ctx, path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = storage.SourceGit
	}
	id, err := s.store.InsertSource(ctx, path, sourceType)
	if err != nil {
		return 0, err
	}
	s.log.Info("source added", "id", id, "type", sourceType, "path", path)
	return id, nil
}

// SyncAll iterates over all sources and reconciles them. A failing source is
// logged and skipped.
func (s *Syncer) SyncAll(ctx context.Context) ([]Report, error) {
	s.log.Info("starting sync for all sources")
	sources, err := s.store.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.log.Info("no sources configured")
		return nil, nil
	}

	var reports []Report
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s.log.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == storage.SourceGit {
			dir, err = s.fetch(ctx, source.Path)
			if err != nil {
				s.log.Error("error syncing git repo", "url", source.Path, "error", err)
				continue
			}
		}

		report, err := s.reconcile(ctx, source.ID, dir)
		if err != nil {
			s.log.Error("error reconciling source", "id", source.ID, "error", err)
			continue
		}
		report.Path = source.Path
		reports = append(reports, report)
	}
	s.log.Info("sync complete", "sources", len(reports))
	return reports, nil
}

func (s *Syncer) fetch(ctx context.Context, repoURL string) (string, error) {
	localPath, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := s.gitSync(ctx, repoURL, localPath, io.Discard); err != nil {
		return "", err
	}
	return localPath, nil
}

// reconcile parses every markdown file under dir, upserts changed units and
// deletes the source's units that no longer appear.
func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string) (Report, error) {
	report := Report{SourceID: sourceID}

	known, err := s.store.ContentDigests(ctx, sourceID)
	if err != nil {
		return report, err
	}
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		units, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, u := range units {
			report.Parsed++
			if found[u.ID] {
				report.Errors = append(report.Errors, fmt.Errorf("duplicate content unit %s in %s", u.ID, path))
				continue
			}
			found[u.ID] = true

			u.Digest = digest.Sum(u)
			if known[u.ID] == u.Digest {
				continue
			}
			if err := s.store.UpsertContentUnit(ctx, u, sourceID); err != nil {
				if errors.Is(err, storage.ErrUnitClaimed) {
					report.Errors = append(report.Errors, fmt.Errorf("%s in %s: %w", u.ID, path, storage.ErrUnitClaimed))
					continue
				}
				report.Errors = append(report.Errors, fmt.Errorf("db upsert for %s: %w", u.ID, err))
				continue
			}
			s.log.Debug("content unit updated", "id", u.ID)
			report.Updated++
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	for id := range known {
		if found[id] {
			continue
		}
		s.log.Info("orphaned content unit, deleting", "id", id)
		if err := s.store.DeleteContentUnit(ctx, id); err != nil {
			s.log.Warn("failed to delete orphaned content unit", "id", id, "error", err)
			continue
		}
		report.Deleted++
	}

	if err := s.store.UpdateSourceLastScanned(ctx, sourceID, time.Now()); err != nil {
		s.log.Warn("failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	s.log.Info("reconciliation complete",
		"path", dir,
		"parsed_units", report.Parsed,
		"updated", report.Updated,
		"orphaned_deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}
