package domain

import "time"

// OverallGroup is the group key that aggregates a user's answers across all regions.
const OverallGroup = "Overall"

// AnswerEvent is one graded guess. Events are immutable facts; they are only
// ever removed wholesale by a per-user reset.
type AnswerEvent struct {
	Timestamp time.Time
	UserID    string
	SourceIP  string
	Country   string
	Region    string
	Submitted string
	Credited  bool
}

// ReportRow is one line of a user's performance report: accuracy and
// competition rank within a group ("Overall" or a region name).
type ReportRow struct {
	Group    string  `json:"group"`
	Accuracy float64 `json:"accuracy"`
	OutOf    int     `json:"outOf"`
	Place    int     `json:"place"`
}

// HealthMetrics summarizes recent answer activity.
type HealthMetrics struct {
	DistinctUsers int `json:"distinctUsers"`
	TotalEvents   int `json:"totalEvents"`
}

// Country is one entry of the reference catalog.
type Country struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Region  string `json:"region"`
	Capital string `json:"capital"`
}

// Catalog is an immutable lookup table of countries, built once and shared
// read-only across request handlers.
type Catalog struct {
	countries []Country
	byID      map[string]int
}

// NewCatalog copies the given countries into an immutable catalog.
func NewCatalog(countries []Country) Catalog {
	list := make([]Country, len(countries))
	copy(list, countries)
	byID := make(map[string]int, len(list))
	for i, c := range list {
		byID[c.ID] = i
	}
	return Catalog{countries: list, byID: byID}
}

// Len reports the number of countries in the catalog.
func (c Catalog) Len() int {
	return len(c.countries)
}

// At returns the country at index i.
func (c Catalog) At(i int) Country {
	return c.countries[i]
}

// ByID looks a country up by its catalog id.
func (c Catalog) ByID(id string) (Country, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Country{}, false
	}
	return c.countries[i], true
}

// Countries returns a copy of the catalog entries.
func (c Catalog) Countries() []Country {
	out := make([]Country, len(c.countries))
	copy(out, c.countries)
	return out
}
