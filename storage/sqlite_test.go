package storage

import (
	"testing"
	"time"

	"github.com/Markiayn/Parser/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.EnsurePartition("Apartments_Test"); err != nil {
		t.Fatalf("failed to create partition: %v", err)
	}
	return store
}

func testApartment(id int, createdAt time.Time) *models.Apartment {
	return &models.Apartment{
		ID:          id,
		Description: "опис",
		Address:     "вул. Тестова, буд. 1",
		Price:       12000,
		Phone:       "+380501112233",
		Floor:       2,
		FloorsCount: 5,
		Rooms:       2,
		Area:        48.5,
		Photos:      []string{"photos/a.webp", "photos/b.webp"},
		CreatedAt:   createdAt,
	}
}

func TestInsertIfAbsent_Idempotent(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	apt := testApartment(1, now)
	inserted, err := store.InsertIfAbsent("Apartments_Test", apt)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert must report a write")
	}

	// Second insert with different fields is a no-op and must not mutate
	// the stored row.
	changed := testApartment(1, now)
	changed.Price = 99999
	inserted, err = store.InsertIfAbsent("Apartments_Test", changed)
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate insert must be a no-op")
	}

	got, err := store.FindByID("Apartments_Test", 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == nil {
		t.Fatalf("row missing after insert")
	}
	if got.Price != 12000 {
		t.Fatalf("duplicate insert altered the row: price=%d", got.Price)
	}
	if len(got.Photos) != 2 {
		t.Fatalf("expected 2 photos back, got %v", got.Photos)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected CreatedAt %v, got %v", now, got.CreatedAt)
	}
}

func TestListUnpublished_OrderAndNulls(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	noDate := testApartment(1, time.Time{}) // unknown creation time
	old := testApartment(2, now.Add(-3*time.Hour))
	fresh := testApartment(3, now.Add(-10*time.Minute))
	for _, apt := range []*models.Apartment{noDate, old, fresh} {
		if _, err := store.InsertIfAbsent("Apartments_Test", apt); err != nil {
			t.Fatalf("insert %d: %v", apt.ID, err)
		}
	}

	apts, err := store.ListUnpublished("Apartments_Test", 10, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(apts) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(apts))
	}
	if apts[0].ID != 3 || apts[1].ID != 2 || apts[2].ID != 1 {
		t.Fatalf("expected order 3,2,1 (newest first, unknown last), got %d,%d,%d",
			apts[0].ID, apts[1].ID, apts[2].ID)
	}
}

func TestListUnpublished_SinceFilterAndLimit(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{10 * time.Minute, 30 * time.Minute, 3 * time.Hour} {
		if _, err := store.InsertIfAbsent("Apartments_Test", testApartment(i+1, now.Add(-age))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	since := now.Add(-time.Hour)
	apts, err := store.ListUnpublished("Apartments_Test", 10, &since)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(apts) != 2 {
		t.Fatalf("expected 2 rows within the hour, got %d", len(apts))
	}

	apts, err = store.ListUnpublished("Apartments_Test", 1, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(apts) != 1 || apts[0].ID != 1 {
		t.Fatalf("limit=1 must return the newest row, got %v", apts)
	}
}

func TestMarkPublished_ExcludesFromSelection(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if _, err := store.InsertIfAbsent("Apartments_Test", testApartment(1, now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.MarkPublished("Apartments_Test", 1); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	apts, err := store.ListUnpublished("Apartments_Test", 10, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(apts) != 0 {
		t.Fatalf("published row still selected: %v", apts)
	}

	got, err := store.FindByID("Apartments_Test", 1)
	if err != nil || got == nil {
		t.Fatalf("find failed: %v %v", got, err)
	}
	if !got.Posted {
		t.Fatalf("posted flag not persisted")
	}
}

func TestClearPartition(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.InsertIfAbsent("Apartments_Test", testApartment(1, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.ClearPartition("Apartments_Test"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	got, err := store.FindByID("Apartments_Test", 1)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got != nil {
		t.Fatalf("row survived partition clear")
	}
}

func TestCheckTable_RejectsBadIdentifiers(t *testing.T) {
	store := openTestStore(t)

	for _, bad := range []string{"", "drop table;--", "Apartments Lviv", "1table"} {
		if err := store.EnsurePartition(bad); err == nil {
			t.Fatalf("expected rejection of table name %q", bad)
		}
	}
}
