package timeline

import (
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/metrics"
)

// Summary aggregates a run's segments.
type Summary struct {
	MainAction    action.Label         `json:"main_action" msgpack:"main_action"`
	Confidence    float64              `json:"confidence" msgpack:"confidence"`
	Probabilities action.Probabilities `json:"probabilities" msgpack:"probabilities"`
	Metrics       metrics.Metrics      `json:"metrics" msgpack:"metrics"`
	Duration      float64              `json:"duration" msgpack:"duration"`
	Segments      int                  `json:"segments" msgpack:"segments"`
}

// Summarize computes the main action by majority over segs, breaking ties by
// earliest first occurrence, and averages confidence, probabilities and
// metrics across all of them.
func Summarize(segs []Segment) Summary {
	if len(segs) == 0 {
		return Summary{}
	}

	counts := make(map[action.Label]int)
	var order []action.Label
	confs := make([]float64, len(segs))
	all := make([]metrics.Metrics, len(segs))
	var probs action.Probabilities

	for i, s := range segs {
		if counts[s.Label] == 0 {
			order = append(order, s.Label)
		}
		counts[s.Label]++
		confs[i] = s.Confidence
		all[i] = s.Metrics
		for j := range probs {
			probs[j] += s.Probabilities[j]
		}
	}
	for j := range probs {
		probs[j] /= float64(len(segs))
	}

	main := order[0]
	for _, l := range order[1:] {
		if counts[l] > counts[main] {
			main = l
		}
	}

	return Summary{
		MainAction:    main,
		Confidence:    stat.Mean(confs, nil),
		Probabilities: probs,
		Metrics:       metrics.Mean(all),
		Duration:      segs[len(segs)-1].EndTime - segs[0].StartTime,
		Segments:      len(segs),
	}
}
