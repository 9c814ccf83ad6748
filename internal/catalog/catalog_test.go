package catalog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/conorfennell/memoria/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSyncLocalSource(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "genesis.md"), "K: genesis_1\nT: Genesis 1\nS: Creation\n---\nK: genesis_2\nT: Genesis 2\n")
	writeFile(t, filepath.Join(dir, "nested", "exodus.md"), "K: exodus_20\nT: Exodus 20\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "K: ignored\nT: Not markdown\n")

	s := NewSyncer(db, t.TempDir(), nil)
	if _, err := s.AddSource(ctx, dir); err != nil {
		t.Fatal(err)
	}

	reports, err := s.SyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}
	if r := reports[0]; r.Parsed != 3 || r.Updated != 3 || r.Deleted != 0 || len(r.Errors) != 0 {
		t.Errorf("Unexpected first report: %+v", r)
	}

	u, err := db.FindContentUnit(ctx, "genesis_1")
	if err != nil || u == nil {
		t.Fatalf("Expected genesis_1 to be stored, got %+v, %v", u, err)
	}
	if u.Title != "Genesis 1" || u.Summary != "Creation" {
		t.Errorf("Unexpected unit: %+v", u)
	}
	if u, _ := db.FindContentUnit(ctx, "ignored"); u != nil {
		t.Error("Expected non-markdown files to be skipped")
	}

	t.Run("unchanged units are not rewritten", func(t *testing.T) {
		reports, err := s.SyncAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if reports[0].Updated != 0 {
			t.Errorf("Expected no updates, got %d", reports[0].Updated)
		}
	})

	t.Run("removed units are deleted", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "genesis.md"), "K: genesis_1\nT: Genesis 1 (revised)\nS: Creation\n")
		reports, err := s.SyncAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if r := reports[0]; r.Updated != 1 || r.Deleted != 1 {
			t.Errorf("Expected 1 update and 1 delete, got %+v", r)
		}
		if u, _ := db.FindContentUnit(ctx, "genesis_2"); u != nil {
			t.Error("Expected genesis_2 to be deleted")
		}
		if u, _ := db.FindContentUnit(ctx, "genesis_1"); u == nil || u.Title != "Genesis 1 (revised)" {
			t.Errorf("Expected genesis_1 to be updated, got %+v", u)
		}
	})
}

func TestSyncDuplicateAcrossSources(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(first, "john.md"), "K: john_1\nT: John 1\n")
	writeFile(t, filepath.Join(second, "john.md"), "K: john_1\nT: John 1 (copy)\n---\nK: john_3\nT: John 3\n")

	s := NewSyncer(db, t.TempDir(), nil)
	firstID, err := s.AddSource(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	secondID, err := s.AddSource(ctx, second)
	if err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 2; round++ {
		reports, err := s.SyncAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(reports) != 2 {
			t.Fatalf("Expected 2 reports, got %d", len(reports))
		}
		r := reports[1]
		if len(r.Errors) != 1 || !errors.Is(r.Errors[0], storage.ErrUnitClaimed) {
			t.Errorf("Round %d: expected one claimed-unit error for the second source, got %v", round, r.Errors)
		}
		if round == 1 && (reports[0].Updated != 0 || r.Updated != 0) {
			t.Errorf("Expected no rewrites on the second sync, got %d and %d", reports[0].Updated, r.Updated)
		}
	}

	if u, _ := db.FindContentUnit(ctx, "john_1"); u == nil || u.Title != "John 1" {
		t.Errorf("Expected john_1 to stay with the first source, got %+v", u)
	}

	if _, err := db.DeleteSource(ctx, secondID); err != nil {
		t.Fatal(err)
	}
	if u, _ := db.FindContentUnit(ctx, "john_1"); u == nil {
		t.Error("Expected deleting the second source to keep john_1")
	}
	if u, _ := db.FindContentUnit(ctx, "john_3"); u != nil {
		t.Error("Expected john_3 to be removed with the second source")
	}

	digests, err := db.ContentDigests(ctx, firstID)
	if err != nil {
		t.Fatal(err)
	}
	if len(digests) != 1 {
		t.Errorf("Expected the first source to own one unit, got %v", digests)
	}
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := NewSyncer(db, t.TempDir(), nil)

	id1, err := s.AddSource(ctx, "https://github.com/acme/fiches.git")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.AddSource(ctx, " https://github.com/acme/fiches.git ")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("Expected re-adding a source to return the same ID, got %d and %d", id1, id2)
	}

	sources, _ := db.GetAllSources(ctx)
	if len(sources) != 1 || sources[0].Type != storage.SourceGit {
		t.Errorf("Unexpected sources: %+v", sources)
	}

	if _, err := s.AddSource(ctx, "  "); err == nil {
		t.Error("Expected an error for an empty path")
	}
}

func TestSyncGitSource(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	reposDir := t.TempDir()
	s := NewSyncer(db, reposDir, nil)

	var fetched string
	s.gitSync = func(_ context.Context, repoURL, localPath string, _ io.Writer) error {
		fetched = repoURL
		writeFile(t, filepath.Join(localPath, "psalms.md"), "K: psalm_23\nT: Psalm 23\n")
		return nil
	}

	if _, err := s.AddSource(ctx, "https://github.com/acme/fiches.git"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddSource(ctx, "https://github.com/acme/broken.git"); err != nil {
		t.Fatal(err)
	}

	failing := s.gitSync
	s.gitSync = func(ctx context.Context, repoURL, localPath string, w io.Writer) error {
		if repoURL == "https://github.com/acme/broken.git" {
			return errors.New("network unreachable")
		}
		return failing(ctx, repoURL, localPath, w)
	}

	reports, err := s.SyncAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fetched != "https://github.com/acme/fiches.git" {
		t.Errorf("Expected fiches repo to be fetched, got %q", fetched)
	}
	if len(reports) != 1 {
		t.Fatalf("Expected the broken repo to be skipped, got %d reports", len(reports))
	}
	if u, _ := db.FindContentUnit(ctx, "psalm_23"); u == nil {
		t.Error("Expected psalm_23 to be loaded from the git checkout")
	}
	if _, err := os.Stat(filepath.Join(reposDir, "github.com", "acme", "fiches", "psalms.md")); err != nil {
		t.Errorf("Expected checkout under the repos dir: %v", err)
	}
}
