package docstore

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "mechi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.Get(&count, `SELECT count(*) FROM documents`); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
}

func TestCreateGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, err := db.Create(ctx, Clients, map[string]any{"name": "Ana"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := db.Get(ctx, Clients, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var c models.Client
	if err := doc.Decode(&c); err != nil {
		t.Fatal(err)
	}
	if c.ID != id || c.Name != "Ana" || c.CreatedAt.IsZero() {
		t.Errorf("decoded = %+v", c)
	}
}

func TestCreate_ExplicitIDConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.Create(ctx, Users, map[string]any{"id": "u1"}); err != nil {
		t.Fatal(err)
	}
	_, err := db.Create(ctx, Users, map[string]any{"id": "u1"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
	if _, err := db.Create(ctx, Clients, map[string]any{"id": "u1"}); err != nil {
		t.Errorf("same id in another collection: %v", err)
	}
}

func TestCreate_RejectsNonObject(t *testing.T) {
	db := testDB(t)
	_, err := db.Create(context.Background(), Clients, []string{"a"})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), Orders, "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_MergesTopLevel(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return clock }

	id, err := db.Create(ctx, Vehicles, map[string]any{"plate": "AB123CD", "make": "Fiat"})
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	if err := db.Update(ctx, Vehicles, id, map[string]any{"make": "Renault", "id": "hijack", "createdAt": "1999-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var v models.Vehicle
	doc, _ := db.Get(ctx, Vehicles, id)
	if err := doc.Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Plate != "AB123CD" || v.Make != "Renault" {
		t.Errorf("merge result = %+v", v)
	}
	if v.ID != id {
		t.Errorf("id changed to %q", v.ID)
	}
	if !v.CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) || !v.UpdatedAt.Equal(clock) {
		t.Errorf("timestamps = %v / %v", v.CreatedAt, v.UpdatedAt)
	}
}

func TestUpdateDelete_NotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Update(ctx, Orders, "nope", map[string]any{"a": 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update err = %v", err)
	}
	if err := db.Delete(ctx, Orders, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, v := range []map[string]any{
		{"plate": "CCC", "clientId": "c1"},
		{"plate": "AAA", "clientId": "c1"},
		{"plate": "BBB", "clientId": "c2"},
	} {
		if _, err := db.Create(ctx, Vehicles, v); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := db.List(ctx, Vehicles, Filter{Field: "clientId", Value: "c1", OrderBy: "plate"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
	var first models.Vehicle
	_ = docs[0].Decode(&first)
	if first.Plate != "AAA" {
		t.Errorf("first plate = %q, want AAA", first.Plate)
	}

	page, err := db.List(ctx, Vehicles, Filter{OrderBy: "plate", Desc: true, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	var mid models.Vehicle
	_ = page[0].Decode(&mid)
	if len(page) != 1 || mid.Plate != "BBB" {
		t.Errorf("page = %+v", mid)
	}

	if _, err := db.List(ctx, Vehicles, Filter{Field: "x') OR 1=1 --"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("injection field err = %v", err)
	}
}

func TestOrderNumbersForYear(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, n := range []string{"OT-2024-001", "OT-2024-007", "OT-2023-099"} {
		if _, err := db.Create(ctx, Orders, map[string]any{"orderNumber": n}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.OrderNumbersForYear(ctx, 2024)
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "OT-2024-001" || got[1] != "OT-2024-007" {
		t.Errorf("numbers = %v", got)
	}
}

func TestCollection(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	clients := NewCollection[models.Client](db, Clients)

	created, err := clients.Create(ctx, &models.Client{Name: "Luis", Phone: "555"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("id not assigned")
	}

	updated, err := clients.Update(ctx, created.ID, map[string]any{"phone": "777"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Luis" || updated.Phone != "777" {
		t.Errorf("updated = %+v", updated)
	}

	all, err := clients.List(ctx, Filter{})
	if err != nil || len(all) != 1 {
		t.Fatalf("List = %v, %v", all, err)
	}
	if err := clients.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := clients.Get(ctx, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestIsKnown(t *testing.T) {
	if !IsKnown(MaintenanceReminders) || IsKnown("notes") {
		t.Error("IsKnown mismatch")
	}
}
