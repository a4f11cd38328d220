package kb

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggestName finds the registered name closest to target, or "" when
// nothing is a plausible match.
func suggestName(target string, candidates []string) string {
	if len(candidates) == 0 || target == "" {
		return ""
	}

	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		// target may be the longer string ("Thomas Colcombett" vs "Colcombet")
		for _, c := range candidates {
			if fuzzy.MatchFold(c, target) {
				ranks = append(ranks, fuzzy.Rank{Source: c, Target: c, Distance: len(target) - len(c)})
			}
		}
	}
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return ranks[0].Target
}
