package detect

import (
	"fmt"
	"math"

	"github.com/jlanderson1802/OD-Market-Share-Estimator/internal/patterns"
)

const (
	strongWeight = 5
	weakWeight   = 1
)

// ScorePMS accumulates weighted fingerprint matches per vendor and returns
// the best guess, its confidence in [0,1], and the clue strings that
// produced the scores. Vendors are scored in the pattern set's fixed
// ascending-name order, so arg-max ties always resolve to the first vendor
// by name; with no matches at all the guess is "unknown" and confidence 0.
func ScorePMS(set patterns.PMSSet, corpus string) (string, float64, []string) {
	scores := make(map[string]int, len(set.Vendors))
	var clues []string

	for _, vendor := range set.Vendors {
		strongHits := findMatches(set.Strong[vendor], corpus)
		weakHits := findMatches(set.Weak[vendor], corpus)
		scores[vendor] = strongWeight*len(strongHits) + weakWeight*len(weakHits)
		for _, h := range strongHits {
			clues = append(clues, fmt.Sprintf("%s:STRONG:%s", vendor, h))
		}
		for _, h := range weakHits {
			clues = append(clues, fmt.Sprintf("%s:WEAK:%s", vendor, h))
		}
	}

	guess := ""
	best := -1
	total := 0
	for _, vendor := range set.Vendors {
		total += scores[vendor]
		if scores[vendor] > best {
			best = scores[vendor]
			guess = vendor
		}
	}

	if total == 0 || best <= 0 {
		return "unknown", 0, clues
	}
	confidence := round3(float64(best) / float64(total))
	return guess, confidence, clues
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
