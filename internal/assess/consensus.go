package assess

import (
	"math"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// ConsensusConfig controls outlier trimming and weighting for
// ComputeConsensus.
type ConsensusConfig struct {
	MinAssessments  int
	DiscardOutliers bool
	Weights         map[event.Provider]float64
}

var DefaultConsensusConfig = ConsensusConfig{
	MinAssessments:  2,
	DiscardOutliers: true,
}

func (c ConsensusConfig) withDefaults() ConsensusConfig {
	if c.MinAssessments == 0 {
		c.MinAssessments = DefaultConsensusConfig.MinAssessments
	}
	return c
}

func (c ConsensusConfig) weightFor(p event.Provider) float64 {
	if w, ok := c.Weights[p]; ok {
		return w
	}
	return 1.0
}

// ComputeConsensus folds a chunk's per-provider assessments into a single
// score in [0,10], per spec §4.5.
func ComputeConsensus(assessments []event.Assessment, cfg ConsensusConfig) float64 {
	cfg = cfg.withDefaults()

	if len(assessments) < cfg.MinAssessments {
		return 0
	}

	surviving := assessments
	if cfg.DiscardOutliers && len(assessments) >= 3 {
		if trimmed, ok := trimOutliers(assessments, cfg.MinAssessments); ok {
			surviving = trimmed
		}
	}

	var weightedSum, totalWeight float64
	for _, a := range surviving {
		w := cfg.weightFor(a.Provider)
		weightedSum += w * float64(a.Score)
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	return round2(weightedSum / totalWeight)
}

// trimOutliers drops assessments more than 2 standard deviations from the
// mean, unless doing so would push the surviving count below minAssessments.
func trimOutliers(assessments []event.Assessment, minAssessments int) ([]event.Assessment, bool) {
	n := float64(len(assessments))
	var sum float64
	for _, a := range assessments {
		sum += float64(a.Score)
	}
	mean := sum / n

	var variance float64
	for _, a := range assessments {
		d := float64(a.Score) - mean
		variance += d * d
	}
	variance /= n
	stddev := math.Sqrt(variance)

	if stddev == 0 {
		return assessments, true
	}

	var kept []event.Assessment
	for _, a := range assessments {
		if math.Abs(float64(a.Score)-mean) <= 2*stddev {
			kept = append(kept, a)
		}
	}
	if len(kept) < minAssessments {
		return assessments, false
	}
	return kept, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
