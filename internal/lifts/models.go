// Package lifts implements the lift-status side of the resort backend: two
// provider adapters (the resort's JSON feed and an HTML status page) mapped
// into one canonical lift list.
package lifts

import "time"

// Status is a lift's operational state.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Entry is one lift. Identity is the stable ID, never the display name:
// upstream renames lifts between seasons.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// Payload is the lift subject's Reading payload. OpenCount/TotalCount are
// derived by Enrich on the fetch path.
type Payload struct {
	Lifts      []Entry `json:"lifts"`
	OpenCount  int     `json:"openCount"`
	TotalCount int     `json:"totalCount"`
}

// Enrich recomputes the open/total counts.
func Enrich(p Payload, _ time.Time) Payload {
	open := 0
	for _, l := range p.Lifts {
		if l.Status == StatusOpen {
			open++
		}
	}
	p.OpenCount = open
	p.TotalCount = len(p.Lifts)
	return p
}
