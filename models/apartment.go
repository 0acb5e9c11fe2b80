package models

import (
	"fmt"
	"time"
)

// PhotoSlots is the number of photo references persisted per apartment.
// The partition table layout carries exactly this many photo columns.
const PhotoSlots = 5

// Apartment is the canonical listing shape: a raw source record that passed
// all filters, enriched with intercepted photos and an optional phone number.
type Apartment struct {
	ID          int       `json:"id"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Price       int       `json:"price"`
	Phone       string    `json:"phone"`
	Floor       int       `json:"floor"`
	FloorsCount int       `json:"floors_count"`
	Rooms       int       `json:"rooms"`
	Area        float64   `json:"area"`
	Photos      []string  `json:"photos"`
	Posted      bool      `json:"posted"`
	CreatedAt   time.Time `json:"created_at"` // zero value = source date unknown
}

func (a *Apartment) AddPhoto(path string) {
	if path != "" {
		a.Photos = append(a.Photos, path)
	}
}

// PhotoArray returns the photo paths padded/truncated to the persisted slots.
func (a *Apartment) PhotoArray() [PhotoSlots]string {
	var out [PhotoSlots]string
	for i := 0; i < PhotoSlots && i < len(a.Photos); i++ {
		out[i] = a.Photos[i]
	}
	return out
}

func (a *Apartment) String() string {
	return fmt.Sprintf("Apartment{id=%d, address=%q, price=%d, rooms=%d, area=%.1f, photos=%d}",
		a.ID, a.Address, a.Price, a.Rooms, a.Area, len(a.Photos))
}

// RawApartment is the semi-structured detail record returned by the catalog.
// Field names mirror the source payload.
type RawApartment struct {
	ID             int     `json:"realty_id"`
	PublishingDate string  `json:"publishing_date"`
	Description    string  `json:"description_uk"`
	Price          int     `json:"price"`
	Floor          int     `json:"floor"`
	FloorsCount    int     `json:"floors_count"`
	Rooms          int     `json:"rooms_count"`
	Area           float64 `json:"total_square_meters"`
	Street         string  `json:"street_name_uk"`
	Building       string  `json:"building_number_str"`
	BeautifulURL   string  `json:"beautiful_url"`
}

// CrawlStats are the per-run acquisition counters. They are reset per run,
// reported at run end and never persisted.
type CrawlStats struct {
	TotalFound        int
	Accepted          int
	RejectedEmptyDate int
	RejectedTooOld    int
	RejectedNoURL     int
}

func (s *CrawlStats) Summary(hoursLimit int) string {
	return fmt.Sprintf("accepted=%d total=%d rejected_empty_date=%d rejected_older_than_%dh=%d rejected_no_url=%d",
		s.Accepted, s.TotalFound, s.RejectedEmptyDate, hoursLimit, s.RejectedTooOld, s.RejectedNoURL)
}
