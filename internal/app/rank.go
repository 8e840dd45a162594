package app

import "sort"

// rankedRow is one user's standing within a single ranking group.
type rankedRow struct {
	accuracy float64
	outOf    int
	place    int
}

// rankGroup assigns competition ranks over one group's per-user accuracies:
// sort by accuracy descending, users with equal accuracy share a place, and
// the place after a tie skips the tied slots (SQL RANK(), not DENSE_RANK()).
// Ties are iterated in userID order so the output is deterministic.
func rankGroup(accuracies map[string]float64) map[string]rankedRow {
	type pair struct {
		userID   string
		accuracy float64
	}
	pairs := make([]pair, 0, len(accuracies))
	for userID, accuracy := range accuracies {
		pairs = append(pairs, pair{userID: userID, accuracy: accuracy})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].accuracy != pairs[j].accuracy {
			return pairs[i].accuracy > pairs[j].accuracy
		}
		return pairs[i].userID < pairs[j].userID
	})

	outOf := len(pairs)
	ranked := make(map[string]rankedRow, outOf)
	place := 1
	for i, p := range pairs {
		if i > 0 && p.accuracy != pairs[i-1].accuracy {
			place = i + 1
		}
		ranked[p.userID] = rankedRow{
			accuracy: p.accuracy,
			outOf:    outOf,
			place:    place,
		}
	}
	return ranked
}
