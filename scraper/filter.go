package scraper

import (
	"fmt"
	"time"

	"github.com/Markiayn/Parser/models"
)

const publishDateLayout = "2006-01-02 15:04:05"

// Rejection classifies why a raw record was dropped by Evaluate.
type Rejection int

const (
	Accepted Rejection = iota
	RejectEmptyDate
	RejectTooOld
	RejectSize // rooms/area below minimums; routine filtering, not counted
	RejectNoURL
)

func (r Rejection) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectEmptyDate:
		return "empty-date"
	case RejectTooOld:
		return "too-old"
	case RejectSize:
		return "size"
	case RejectNoURL:
		return "missing-url"
	default:
		return "unknown"
	}
}

// FilterParams carries the crawl-time filtering knobs plus the clock value,
// injected so evaluation stays deterministic under test.
type FilterParams struct {
	Now        time.Time
	HoursLimit int
	MinRooms   int
	MinArea    float64
}

// Evaluate applies the freshness, size and completeness predicates to a raw
// record, in order and short-circuiting. On acceptance it returns the
// canonical listing shell; phone and photos are filled in later by the
// session harvest.
func Evaluate(raw *models.RawApartment, p FilterParams) (*models.Apartment, Rejection) {
	if raw.PublishingDate == "" {
		return nil, RejectEmptyDate
	}
	published, err := time.Parse(publishDateLayout, raw.PublishingDate)
	if err != nil {
		return nil, RejectEmptyDate
	}

	// Whole-hour comparison: a record aged exactly HoursLimit hours is
	// still fresh, the boundary is strict.
	if int(p.Now.Sub(published).Hours()) > p.HoursLimit {
		return nil, RejectTooOld
	}

	if raw.Rooms < p.MinRooms || raw.Area < p.MinArea {
		return nil, RejectSize
	}

	if raw.BeautifulURL == "" {
		return nil, RejectNoURL
	}

	return &models.Apartment{
		ID:          raw.ID,
		Description: raw.Description,
		Address:     fmt.Sprintf("%s, буд. %s", raw.Street, raw.Building),
		Price:       raw.Price,
		Floor:       raw.Floor,
		FloorsCount: raw.FloorsCount,
		Rooms:       raw.Rooms,
		Area:        raw.Area,
		CreatedAt:   published,
	}, Accepted
}
