// Package discovery selects the participants someone may evaluate next.
package discovery

import (
	"slices"
	"strings"

	"github.com/okian/elove/internal/domain/model"
)

// Candidates returns every participant in all except self and anyone self has
// already evaluated (any polarity), ordered by score desc then id asc.
func Candidates(self string, all []model.Participant, given []model.Interaction) []model.Participant {
	seen := make(map[string]struct{}, len(given)+1)
	seen[self] = struct{}{}
	for _, in := range given {
		seen[in.ToID] = struct{}{}
	}

	out := make([]model.Participant, 0, len(all))
	for _, p := range all {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	SortByScore(out)
	return out
}

// SortByScore orders participants by score desc, breaking ties by id asc.
func SortByScore(ps []model.Participant) {
	slices.SortStableFunc(ps, func(a, b model.Participant) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}
