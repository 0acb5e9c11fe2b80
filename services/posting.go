package services

import (
	"log"
	"sort"
	"time"

	"github.com/Markiayn/Parser/config"
	"github.com/Markiayn/Parser/logging"
	"github.com/Markiayn/Parser/models"
	"github.com/Markiayn/Parser/storage"
)

// sendRateLimit spaces successive channel deliveries to stay inside the Bot
// API throughput limits.
const sendRateLimit = 2 * time.Second

// Sender is the delivery seam; Telegram implements it.
type Sender interface {
	SendApartment(apt *models.Apartment, channel string) bool
}

// Pick pairs a selected listing with the partition it came from, so marking
// it published never has to guess its owning table.
type Pick struct {
	Apartment models.Apartment
	Table     string
}

// Poster selects unpublished listings and hands them to the delivery
// collaborator: at most two per partition per trigger, freshest first,
// split across the partition's two channels.
type Poster struct {
	store   storage.Store
	sender  Sender
	cities  []config.City
	warn    *logging.Warnings
	verbose bool

	sleep func(time.Duration)
}

func NewPoster(store storage.Store, sender Sender, cities []config.City, warn *logging.Warnings, verbose bool) *Poster {
	return &Poster{
		store:   store,
		sender:  sender,
		cities:  cities,
		warn:    warn,
		verbose: verbose,
		sleep:   time.Sleep,
	}
}

// PostMorning runs the two-channel split for every partition.
func (p *Poster) PostMorning() {
	for _, city := range p.cities {
		p.postSplitForCity(city)
	}
}

// PostHourly prefers listings created within the last hour across all
// partitions; when none exist anywhere it falls back to the plain
// two-per-partition selection.
func (p *Poster) PostHourly(now time.Time) {
	picks := p.selectRecent(now)
	if len(picks) == 0 {
		if p.verbose {
			log.Println("No listings from the last hour, using all unpublished")
		}
		p.PostMorning()
		return
	}
	p.deliverSplit(picks)
}

func (p *Poster) postSplitForCity(city config.City) {
	if city.Channel1 == "" || city.Channel2 == "" {
		p.warn.Warnf("partition %s is missing a channel (channel1=%q channel2=%q)", city.Table, city.Channel1, city.Channel2)
	}

	apts, err := p.store.ListUnpublished(city.Table, 2, nil)
	if err != nil {
		p.warn.Warnf("select from %s: %v", city.Table, err)
		return
	}

	var picks []Pick
	for _, apt := range apts {
		if len(apt.Photos) == 0 {
			if p.verbose {
				log.Printf("Listing %d has no photos, skipping", apt.ID)
			}
			continue
		}
		picks = append(picks, Pick{Apartment: apt, Table: city.Table})
	}
	p.deliverSplit(picks)
}

// selectRecent gathers unpublished listings created within the last hour
// from every partition, newest first, capped at two.
func (p *Poster) selectRecent(now time.Time) []Pick {
	since := now.Add(-time.Hour)

	var picks []Pick
	for _, city := range p.cities {
		apts, err := p.store.ListUnpublished(city.Table, 5, &since)
		if err != nil {
			p.warn.Warnf("select recent from %s: %v", city.Table, err)
			continue
		}
		for _, apt := range apts {
			if len(apt.Photos) == 0 {
				continue
			}
			picks = append(picks, Pick{Apartment: apt, Table: city.Table})
		}
	}

	sort.SliceStable(picks, func(i, j int) bool {
		a, b := picks[i].Apartment.CreatedAt, picks[j].Apartment.CreatedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
	if len(picks) > 2 {
		picks = picks[:2]
	}
	return picks
}

// deliverSplit sends the first pick to its partition's channel 1 and the
// second to channel 2. Each delivered listing is marked published
// independently; a failed one stays unpublished for the next trigger.
func (p *Poster) deliverSplit(picks []Pick) {
	for i, pick := range picks {
		if i >= 2 {
			break
		}
		if i > 0 {
			p.sleep(sendRateLimit)
		}

		city, ok := p.cityForTable(pick.Table)
		if !ok {
			p.warn.Warnf("no partition configured for table %s, listing %d not sent", pick.Table, pick.Apartment.ID)
			continue
		}
		channel := city.Channel1
		if i == 1 {
			channel = city.Channel2
		}

		if !p.sender.SendApartment(&pick.Apartment, channel) {
			p.warn.Warnf("delivery of listing %d to %s failed, stays unpublished", pick.Apartment.ID, channel)
			continue
		}
		if err := p.store.MarkPublished(pick.Table, pick.Apartment.ID); err != nil {
			p.warn.Warnf("mark published %d in %s: %v", pick.Apartment.ID, pick.Table, err)
			continue
		}
		if p.verbose {
			log.Printf("Published listing %d from %s to %s", pick.Apartment.ID, pick.Table, channel)
		}
	}
}

func (p *Poster) cityForTable(table string) (config.City, bool) {
	for _, c := range p.cities {
		if c.Table == table {
			return c, true
		}
	}
	return config.City{}, false
}

// Stats logs the number of unpublished listings per partition.
func (p *Poster) Stats() {
	log.Println("Unpublished listings per city:")
	for _, city := range p.cities {
		apts, err := p.store.ListUnpublished(city.Table, 1000, nil)
		if err != nil {
			log.Printf("  %s: error: %v", city.Name, err)
			continue
		}
		line := ""
		if len(apts) > 0 {
			line = apts[0].CreatedAt.Format("02.01 15:04")
		}
		log.Printf("  %s: %d unpublished, newest: %s", city.Name, len(apts), line)
	}
}
