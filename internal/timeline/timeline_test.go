package timeline

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/metrics"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func seg(start, end float64, label action.Label, conf float64) Segment {
	s := Segment{
		StartTime:  start,
		EndTime:    end,
		Label:      label,
		Confidence: conf,
		Metrics:    metrics.Metrics{FormScore: metrics.Float(conf)},
	}
	s.Probabilities.Set(label, conf)
	return s
}

// randomSegments returns n time-ordered segments shaped like overlapping
// window output.
func randomSegments(r *rand.Rand, n int) []Segment {
	labels := []action.Label{action.Dribbling, action.Passing, action.Idle}
	out := make([]Segment, n)
	end := 0.0
	for i := range out {
		dur := 0.05 + r.Float64()*1.5
		start := end - r.Float64()*0.4
		if start < 0 {
			start = 0
		}
		if r.Intn(5) == 0 {
			start = end + r.Float64()
		}
		end = start + dur
		out[i] = seg(start, end, labels[r.Intn(len(labels))], r.Float64())
	}
	return out
}

func TestCoalesce_Example(t *testing.T) {
	in := []Segment{
		seg(0.0, 1.0, action.Dribbling, 0.8),
		seg(1.0, 1.1, action.Passing, 0.7),
		seg(1.1, 2.5, action.Dribbling, 0.85),
	}

	got := Coalesce(in, DefaultOptions())

	require.Len(t, got, 1)
	assert.Equal(t, action.Dribbling, got[0].Label)
	assert.InDelta(t, 0.0, got[0].StartTime, 1e-9)
	assert.InDelta(t, 2.5, got[0].EndTime, 1e-9)
}

func TestCoalesce_CoverageInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		in := randomSegments(r, 1+r.Intn(30))

		got := Coalesce(in, DefaultOptions())

		require.NotEmpty(t, got)
		assert.Equal(t, in[0].StartTime, got[0].StartTime)
		assert.Equal(t, in[len(in)-1].EndTime, got[len(got)-1].EndTime)
		for j := 1; j < len(got); j++ {
			assert.LessOrEqual(t, got[j-1].StartTime, got[j].StartTime)
		}
	}
}

func TestMergeAdjacent_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		in := randomSegments(r, 1+r.Intn(30))

		once := MergeAdjacent(in, 0.5)
		twice := MergeAdjacent(once, 0.5)

		if diff := cmp.Diff(once, twice, approx); diff != "" {
			t.Fatalf("second pass changed output (-once +twice):\n%s", diff)
		}
	}
}

func TestMergeAdjacent(t *testing.T) {
	t.Run("merges same label within tolerance", func(t *testing.T) {
		in := []Segment{
			seg(0, 1.6, action.Dribbling, 0.6),
			seg(0.8, 2.4, action.Dribbling, 0.8),
		}

		got := MergeAdjacent(in, 0.5)

		require.Len(t, got, 1)
		assert.InDelta(t, 2.4, got[0].EndTime, 1e-9)
		assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
		assert.InDelta(t, 0.7, got[0].Probabilities.Get(action.Dribbling), 1e-9)
		assert.InDelta(t, 0.7, *got[0].Metrics.FormScore, 1e-9)
	})

	t.Run("gap beyond tolerance splits", func(t *testing.T) {
		in := []Segment{
			seg(0, 1, action.Dribbling, 0.6),
			seg(1.6, 2.4, action.Dribbling, 0.8),
		}

		assert.Len(t, MergeAdjacent(in, 0.5), 2)
	})

	t.Run("gap equal to tolerance merges", func(t *testing.T) {
		in := []Segment{
			seg(0, 1, action.Dribbling, 0.6),
			seg(1.5, 2.4, action.Dribbling, 0.8),
		}

		assert.Len(t, MergeAdjacent(in, 0.5), 1)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, MergeAdjacent(nil, 0.5))
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		in := []Segment{
			seg(0, 1, action.Dribbling, 0.6),
			seg(1, 2, action.Dribbling, 0.8),
		}
		snapshot := []Segment{in[0].Clone(), in[1].Clone()}

		got := MergeAdjacent(in, 0.5)
		*got[0].Metrics.FormScore = 42

		if diff := cmp.Diff(snapshot, in); diff != "" {
			t.Errorf("inputs mutated (-want +got):\n%s", diff)
		}
	})
}

func TestFilterShort(t *testing.T) {
	opts := DefaultOptions()

	t.Run("leading short segment kept", func(t *testing.T) {
		in := []Segment{
			seg(0, 0.1, action.Passing, 0.5),
			seg(0.1, 2, action.Dribbling, 0.9),
		}

		got := FilterShort(in, opts)

		require.Len(t, got, 2)
		assert.Equal(t, action.Passing, got[0].Label)
	})

	t.Run("trailing short segment absorbed", func(t *testing.T) {
		in := []Segment{
			seg(0, 2, action.Dribbling, 0.9),
			seg(2, 2.2, action.Passing, 0.5),
		}

		got := FilterShort(in, opts)

		require.Len(t, got, 1)
		assert.Equal(t, action.Dribbling, got[0].Label)
		assert.InDelta(t, 2.2, got[0].EndTime, 1e-9)
		assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
	})

	t.Run("long segments untouched", func(t *testing.T) {
		in := []Segment{
			seg(0, 1, action.Dribbling, 0.9),
			seg(1, 2, action.Passing, 0.5),
		}

		got := FilterShort(in, opts)

		if diff := cmp.Diff(in, got, approx); diff != "" {
			t.Errorf("unexpected change (-want +got):\n%s", diff)
		}
	})
}

func TestMerge_FormQuality(t *testing.T) {
	a := seg(0, 1, action.TwoPointShot, 0.8)
	a.FormQuality = &metrics.Assessment{
		OverallScore: 0.9,
		Issues:       []metrics.Issue{{IssueType: "knee_bend"}},
	}
	b := seg(1, 2, action.TwoPointShot, 0.8)
	b.FormQuality = &metrics.Assessment{
		OverallScore: 0.6,
		Issues:       []metrics.Issue{{IssueType: "knee_bend"}, {IssueType: "release_point"}},
	}

	got := Merge(a, b)

	require.NotNil(t, got.FormQuality)
	assert.InDelta(t, 0.75, got.FormQuality.OverallScore, 1e-9)
	assert.Equal(t, metrics.RatingGood, got.FormQuality.QualityRating)
	assert.Len(t, got.FormQuality.Issues, 2)
	assert.Len(t, a.FormQuality.Issues, 1)
}

func TestMerge_MetricPassThrough(t *testing.T) {
	a := Segment{Metrics: metrics.Metrics{FormScore: metrics.Float(0.8)}}
	b := Segment{}

	got := Merge(a, b)

	require.NotNil(t, got.Metrics.FormScore)
	assert.InDelta(t, 0.8, *got.Metrics.FormScore, 1e-9)
}

func TestBuilder(t *testing.T) {
	first := seg(0, 1, action.Idle, 0.4)
	b := NewBuilder(first)
	b.Absorb(seg(1, 2, action.Idle, 0.6))

	out := b.Build()
	*out.Metrics.FormScore = 99

	again := b.Build()
	assert.InDelta(t, 0.5, *again.Metrics.FormScore, 1e-9)
	assert.InDelta(t, 0.4, *first.Metrics.FormScore, 1e-9)
	assert.Equal(t, action.Idle, b.Label())
	assert.InDelta(t, 2, b.EndTime(), 1e-9)
}

func TestCoalescer_MatchesBatch(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		in := randomSegments(r, 1+r.Intn(25))
		c := NewCoalescer(DefaultOptions())

		for j, s := range in {
			c.Append(s)
			// Snapshots mid-stream must not disturb the running state.
			partial := c.Timeline()
			if diff := cmp.Diff(Coalesce(in[:j+1], DefaultOptions()), partial, approx); diff != "" {
				t.Fatalf("partial timeline mismatch at %d (-want +got):\n%s", j, diff)
			}
		}

		assert.Equal(t, len(in), c.Len())
		if diff := cmp.Diff(in, c.Raw(), approx); diff != "" {
			t.Fatalf("raw mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestCoalescer_Empty(t *testing.T) {
	c := NewCoalescer(DefaultOptions())
	assert.Nil(t, c.Timeline())
	assert.Zero(t, c.Len())
}

func TestSummarize(t *testing.T) {
	segs := []Segment{
		seg(0, 1, action.Passing, 0.6),
		seg(1, 2, action.Dribbling, 0.8),
		seg(2, 3, action.Passing, 0.7),
		seg(3, 4, action.Dribbling, 0.9),
	}

	got := Summarize(segs)

	// Tie between passing and dribbling goes to the first seen.
	assert.Equal(t, action.Passing, got.MainAction)
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
	assert.InDelta(t, 4, got.Duration, 1e-9)
	assert.Equal(t, 4, got.Segments)
	assert.InDelta(t, 0.75, *got.Metrics.FormScore, 1e-9)
	assert.InDelta(t, (0.8+0.9)/4, got.Probabilities.Get(action.Dribbling), 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil))
}
