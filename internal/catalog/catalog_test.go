package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/testutil"
)

const brakesMD = "---\nname: Frenos\ndescription: Servicio de frenos\n---\n- Pastillas\n- Discos\n"

func catalogEnv(t *testing.T) (string, *Catalog, *docstore.DB) {
	t.Helper()
	dir := t.TempDir()
	db := testutil.TestDB(t)
	return dir, New(db, dir, testutil.Logger()), db
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

func TestIDFor(t *testing.T) {
	if got := IDFor("Frenos.md"); got != "frenos" {
		t.Errorf("IDFor = %q", got)
	}
	if got := IDFor(filepath.Join("motor", "afinacion.md")); got != "motor-afinacion" {
		t.Errorf("IDFor nested = %q", got)
	}
}

func TestSync_CreatesUpdatesAndRemoves(t *testing.T) {
	dir, c, db := catalogEnv(t)
	ctx := context.Background()
	cats := docstore.NewCollection[models.Category](db, docstore.Categories)

	writeFile(t, filepath.Join(dir, "frenos.md"), brakesMD)
	writeFile(t, filepath.Join(dir, "motor", "aceite.md"), "# Aceite\n- Filtro\n")

	var events []string
	cb := func(kind, id string) { events = append(events, kind+":"+id) }

	if err := c.Sync(ctx, cb); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	got, err := cats.Get(ctx, "frenos")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Frenos" || got.Description != "Servicio de frenos" || !reflect.DeepEqual(got.SubItems, []string{"Pastillas", "Discos"}) {
		t.Errorf("category = %+v", got)
	}
	if got.Source != "frenos.md" || got.Checksum == "" {
		t.Errorf("source/checksum = %q/%q", got.Source, got.Checksum)
	}
	if len(events) != 2 {
		t.Errorf("events = %v", events)
	}

	// Unchanged files are skipped.
	events = nil
	if err := c.Sync(ctx, cb); err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("unchanged sync produced events %v", events)
	}

	// API-created categories survive, stale file-backed ones go.
	if _, err := db.Create(ctx, docstore.Categories, map[string]any{"id": "manual", "name": "Manual"}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "frenos.md"), brakesMD+"- Liquido\n")
	if err := os.Remove(filepath.Join(dir, "motor", "aceite.md")); err != nil {
		t.Fatal(err)
	}
	if err := c.Sync(ctx, cb); err != nil {
		t.Fatal(err)
	}
	got, _ = cats.Get(ctx, "frenos")
	if len(got.SubItems) != 3 {
		t.Errorf("sub-items after edit = %v", got.SubItems)
	}
	if _, err := cats.Get(ctx, "motor-aceite"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale category still present: %v", err)
	}
	if _, err := cats.Get(ctx, "manual"); err != nil {
		t.Errorf("manual category removed: %v", err)
	}
}

func TestSync_NameFallsBackToFileName(t *testing.T) {
	dir, c, db := catalogEnv(t)
	writeFile(t, filepath.Join(dir, "suspension.md"), "- Amortiguadores\n")
	if err := c.Sync(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	got, err := docstore.NewCollection[models.Category](db, docstore.Categories).Get(context.Background(), "suspension")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "suspension" {
		t.Errorf("name = %q", got.Name)
	}
}
