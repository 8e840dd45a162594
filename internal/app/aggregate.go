package app

import (
	"capital-quiz-service/internal/domain"
)

// groupPriority controls report ordering only; the Overall group always
// renders before the per-region groups.
const (
	overallPriority = 100
	regionPriority  = 0
)

// accuracyGroup is one ranking group: per-user accuracy over the facts that
// fall into the group.
type accuracyGroup struct {
	priority   int
	accuracies map[string]float64
}

type tally struct {
	correct int
	total   int
}

// aggregate builds the cross-user accuracy table from the full fact log:
// one "Overall" group keyed by user only, plus one group per region keyed by
// (user, region). Users with no facts in a group simply do not appear in it.
func aggregate(events []domain.AnswerEvent) map[string]accuracyGroup {
	overall := make(map[string]*tally)
	byRegion := make(map[string]map[string]*tally)

	for _, ev := range events {
		bump(overall, ev.UserID, ev.Credited)
		region, ok := byRegion[ev.Region]
		if !ok {
			region = make(map[string]*tally)
			byRegion[ev.Region] = region
		}
		bump(region, ev.UserID, ev.Credited)
	}

	groups := make(map[string]accuracyGroup, len(byRegion)+1)
	if len(overall) > 0 {
		groups[domain.OverallGroup] = accuracyGroup{
			priority:   overallPriority,
			accuracies: ratios(overall),
		}
	}
	for region, tallies := range byRegion {
		groups[region] = accuracyGroup{
			priority:   regionPriority,
			accuracies: ratios(tallies),
		}
	}
	return groups
}

func bump(tallies map[string]*tally, userID string, credited bool) {
	t, ok := tallies[userID]
	if !ok {
		t = &tally{}
		tallies[userID] = t
	}
	t.total++
	if credited {
		t.correct++
	}
}

func ratios(tallies map[string]*tally) map[string]float64 {
	out := make(map[string]float64, len(tallies))
	for userID, t := range tallies {
		// total is always >= 1: a tally only exists once a fact was seen.
		out[userID] = float64(t.correct) / float64(t.total)
	}
	return out
}
