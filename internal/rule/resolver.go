package rule

import "github.com/backofhouse/tally/internal/model"

// Resolve picks the single winning rule for a record out of the matcher's
// snapshot, or nil when nothing matches. It is a pure read: active rules
// whose scope covers the record's source are matched, and the winner is
// the one with the highest priority, ties broken by earliest CreatedAt
// and then lowest ID so the result never depends on slice order.
func Resolve(m *Matcher, rec model.Record) *model.Rule {
	var winner *model.Rule

	for i := range m.Rules() {
		r := &m.Rules()[i]
		if !r.Active || !r.Scope.Covers(rec.Source) {
			continue
		}
		if !m.Matches(*r, rec) {
			continue
		}
		if winner == nil || beats(r, winner) {
			winner = r
		}
	}

	return winner
}

// beats reports whether candidate wins over incumbent.
func beats(candidate, incumbent *model.Rule) bool {
	if candidate.Priority != incumbent.Priority {
		return candidate.Priority > incumbent.Priority
	}
	if !candidate.CreatedAt.Equal(incumbent.CreatedAt) {
		return candidate.CreatedAt.Before(incumbent.CreatedAt)
	}
	return candidate.ID < incumbent.ID
}
