// internal/workers/dealflow/rank-buyer-matches/ranking.go
package rankbuyermatches

import (
	"sort"
	"time"
)

const freshnessWindow = 30 * 24 * time.Hour

// freshness decays linearly from 100 at the moment of scoring to 0 at
// thirty days, so a stale A-tier score cannot pin the top of the list
// forever.
func freshness(scoredAt, now time.Time) float64 {
	age := now.Sub(scoredAt)
	if age <= 0 {
		return 100
	}
	if age >= freshnessWindow {
		return 0
	}
	return 100 * (1 - float64(age)/float64(freshnessWindow))
}

func priority(composite, engagement int, scoredAt, now time.Time) float64 {
	return float64(composite)*0.5 + float64(engagement)*0.3 + freshness(scoredAt, now)*0.2
}

// rankMatches orders candidates by priority descending. Ties break on
// buyer ID ascending so repeated runs over the same rows produce the
// same order.
func rankMatches(matches []Match, now time.Time) []Match {
	for i := range matches {
		matches[i].Priority = priority(
			matches[i].CompositeScore, matches[i].EngagementScore, matches[i].ScoredAt, now)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].BuyerID < matches[j].BuyerID
	})

	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

// dedupIDs keeps the first occurrence of each buyer ID in input order.
func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
