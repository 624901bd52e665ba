// Package traits maintains per-user personality vectors updated by exact
// incremental averaging: each analysed message contributes one sample per
// dimension and the stored value is the arithmetic mean of all samples.
package traits

import (
	"fmt"

	"astra-agent/internal/llm"
)

// rollingAvg folds one sample into a running mean without decay or outlier
// rejection.
func rollingAvg(oldAvg float64, oldCount int, sample float64) float64 {
	return (oldAvg*float64(oldCount) + sample) / float64(oldCount+1)
}

// validScore accepts only dimension scores inside the trait-vector bounds;
// anything else marks the structured result as malformed.
func validScore(v float64) bool {
	return v >= 0 && v <= 1
}

func checkScores(scores ...float64) error {
	for _, v := range scores {
		if !validScore(v) {
			return fmt.Errorf("%w: dimension score %v outside [0,1]", llm.ErrMalformedOutput, v)
		}
	}
	return nil
}
