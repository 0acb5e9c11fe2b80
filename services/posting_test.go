package services

import (
	"sort"
	"testing"
	"time"

	"github.com/Markiayn/Parser/config"
	"github.com/Markiayn/Parser/logging"
	"github.com/Markiayn/Parser/models"
)

type fakeStore struct {
	tables    map[string][]models.Apartment
	published map[string][]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:    make(map[string][]models.Apartment),
		published: make(map[string][]int),
	}
}

func (s *fakeStore) add(table string, apt models.Apartment) {
	s.tables[table] = append(s.tables[table], apt)
}

func (s *fakeStore) EnsurePartition(table string) error { return nil }
func (s *fakeStore) ClearPartition(table string) error {
	s.tables[table] = nil
	return nil
}

func (s *fakeStore) InsertIfAbsent(table string, apt *models.Apartment) (bool, error) {
	for _, existing := range s.tables[table] {
		if existing.ID == apt.ID {
			return false, nil
		}
	}
	s.add(table, *apt)
	return true, nil
}

func (s *fakeStore) ListUnpublished(table string, limit int, since *time.Time) ([]models.Apartment, error) {
	var out []models.Apartment
	for _, apt := range s.tables[table] {
		if apt.Posted {
			continue
		}
		if since != nil && apt.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, apt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) FindByID(table string, id int) (*models.Apartment, error) {
	for _, apt := range s.tables[table] {
		if apt.ID == id {
			found := apt
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) MarkPublished(table string, id int) error {
	for i := range s.tables[table] {
		if s.tables[table][i].ID == id {
			s.tables[table][i].Posted = true
		}
	}
	s.published[table] = append(s.published[table], id)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type sent struct {
	id      int
	channel string
}

type fakeSender struct {
	sent []sent
	fail map[string]bool // channels that reject delivery
}

func (f *fakeSender) SendApartment(apt *models.Apartment, channel string) bool {
	if f.fail[channel] {
		return false
	}
	f.sent = append(f.sent, sent{id: apt.ID, channel: channel})
	return true
}

func testCities() []config.City {
	return []config.City{
		{Name: "Львів", RegionID: 5, Table: "Apartments_Lviv", Channel1: "@lviv1", Channel2: "@lviv2", Hours: 24},
		{Name: "Київ", RegionID: 10, Table: "Apartments_Kyiv", Channel1: "@kyiv1", Channel2: "@kyiv2", Hours: 24},
	}
}

func newTestPoster(store *fakeStore, sender *fakeSender) *Poster {
	p := NewPoster(store, sender, testCities(), logging.NewWarnings(testWarningsPath()), false)
	p.sleep = func(time.Duration) {} // no rate-limit waits under test
	return p
}

func testWarningsPath() string {
	return "/dev/null"
}

func apartmentAt(id int, createdAt time.Time, photos ...string) models.Apartment {
	return models.Apartment{ID: id, Photos: photos, CreatedAt: createdAt, Address: "тест", Price: 10000}
}

func TestPostMorning_TwoChannelSplit(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.add("Apartments_Lviv", apartmentAt(1, now.Add(-2*time.Hour), "p1.webp"))
	store.add("Apartments_Lviv", apartmentAt(2, now.Add(-3*time.Hour), "p2.webp"))

	sender := &fakeSender{}
	newTestPoster(store, sender).PostMorning()

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d: %v", len(sender.sent), sender.sent)
	}
	// Freshest goes to channel 1, the next to channel 2, never the same
	// listing twice.
	if sender.sent[0].id != 1 || sender.sent[0].channel != "@lviv1" {
		t.Fatalf("unexpected first delivery: %+v", sender.sent[0])
	}
	if sender.sent[1].id != 2 || sender.sent[1].channel != "@lviv2" {
		t.Fatalf("unexpected second delivery: %+v", sender.sent[1])
	}
	if sender.sent[0].id == sender.sent[1].id {
		t.Fatalf("same listing assigned to both channels")
	}
	if got := store.published["Apartments_Lviv"]; len(got) != 2 {
		t.Fatalf("expected both listings marked published, got %v", got)
	}
}

func TestPostMorning_SkipsListingsWithoutPhotos(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.add("Apartments_Lviv", apartmentAt(1, now)) // no photos
	store.add("Apartments_Lviv", apartmentAt(2, now.Add(-time.Hour), "p.webp"))

	sender := &fakeSender{}
	newTestPoster(store, sender).PostMorning()

	for _, s := range sender.sent {
		if s.id == 1 {
			t.Fatalf("photoless listing was delivered: %v", sender.sent)
		}
	}
	for _, id := range store.published["Apartments_Lviv"] {
		if id == 1 {
			t.Fatalf("photoless listing was marked published")
		}
	}
}

func TestPostMorning_FailedDeliveryStaysUnpublished(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.add("Apartments_Lviv", apartmentAt(1, now, "p1.webp"))
	store.add("Apartments_Lviv", apartmentAt(2, now.Add(-time.Hour), "p2.webp"))

	sender := &fakeSender{fail: map[string]bool{"@lviv1": true}}
	newTestPoster(store, sender).PostMorning()

	// Channel 2 delivery succeeds and is marked independently of the
	// channel 1 failure.
	published := store.published["Apartments_Lviv"]
	if len(published) != 1 || published[0] != 2 {
		t.Fatalf("expected only listing 2 marked, got %v", published)
	}
}

func TestPostHourly_PrefersRecentAcrossPartitions(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.add("Apartments_Lviv", apartmentAt(1, now.Add(-5*time.Hour), "old.webp"))
	store.add("Apartments_Kyiv", apartmentAt(2, now.Add(-30*time.Minute), "new.webp"))

	sender := &fakeSender{}
	newTestPoster(store, sender).PostHourly(now)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly the recent listing, got %v", sender.sent)
	}
	if sender.sent[0].id != 2 || sender.sent[0].channel != "@kyiv1" {
		t.Fatalf("recent listing must go to its own partition's channel 1: %+v", sender.sent[0])
	}
	if got := store.published["Apartments_Kyiv"]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("recent listing must be marked in its own partition, got %v", got)
	}
}

func TestPostHourly_FallsBackWhenNothingRecent(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.add("Apartments_Lviv", apartmentAt(1, now.Add(-6*time.Hour), "p.webp"))

	sender := &fakeSender{}
	newTestPoster(store, sender).PostHourly(now)

	if len(sender.sent) != 1 || sender.sent[0].id != 1 {
		t.Fatalf("fallback must publish the stale unpublished listing, got %v", sender.sent)
	}
}

func TestPostHourly_CapsAtTwoPicks(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	for i := 1; i <= 4; i++ {
		store.add("Apartments_Lviv", apartmentAt(i, now.Add(-time.Duration(i)*time.Minute), "p.webp"))
	}

	sender := &fakeSender{}
	newTestPoster(store, sender).PostHourly(now)

	if len(sender.sent) != 2 {
		t.Fatalf("expected at most 2 deliveries, got %d", len(sender.sent))
	}
	if sender.sent[0].id != 1 || sender.sent[1].id != 2 {
		t.Fatalf("expected the two freshest listings, got %v", sender.sent)
	}
}
