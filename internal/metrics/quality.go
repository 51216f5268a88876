package metrics

import "math"

// Severity grades a form issue.
type Severity string

// Issue severities.
const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// Rating is the coarse quality band for an overall score.
type Rating string

// Quality ratings.
const (
	RatingExcellent        Rating = "excellent"
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs_improvement"
	RatingPoor             Rating = "poor"
)

// RatingFor maps an overall score to its rating band.
func RatingFor(score float64) Rating {
	switch {
	case score >= 0.85:
		return RatingExcellent
	case score >= 0.70:
		return RatingGood
	case score >= 0.50:
		return RatingNeedsImprovement
	}
	return RatingPoor
}

// Issue is a single detected form problem.
type Issue struct {
	IssueType      string   `json:"issue_type" msgpack:"issue_type"`
	Severity       Severity `json:"severity" msgpack:"severity"`
	Description    string   `json:"description" msgpack:"description"`
	CurrentValue   *float64 `json:"current_value,omitempty" msgpack:"current_value,omitempty"`
	OptimalValue   string   `json:"optimal_value,omitempty" msgpack:"optimal_value,omitempty"`
	Recommendation string   `json:"recommendation" msgpack:"recommendation"`
}

// Assessment is the form-quality verdict for a window or segment.
type Assessment struct {
	OverallScore  float64  `json:"overall_score" msgpack:"overall_score"`
	QualityRating Rating   `json:"quality_rating" msgpack:"quality_rating"`
	Issues        []Issue  `json:"issues" msgpack:"issues"`
	Strengths     []string `json:"strengths" msgpack:"strengths"`
}

// Clone returns a deep copy of a. A nil assessment clones to nil.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := &Assessment{
		OverallScore:  a.OverallScore,
		QualityRating: a.QualityRating,
	}
	if a.Issues != nil {
		out.Issues = make([]Issue, len(a.Issues))
		for i, is := range a.Issues {
			if is.CurrentValue != nil {
				is.CurrentValue = Float(*is.CurrentValue)
			}
			out.Issues[i] = is
		}
	}
	if a.Strengths != nil {
		out.Strengths = append([]string{}, a.Strengths...)
	}
	return out
}

// Combine merges two assessments. Issues are unioned by IssueType with a
// taking precedence, strengths are unioned and the overall score is the mean
// with the rating recomputed. If either side is nil a copy of the other is
// returned.
func Combine(a, b *Assessment) *Assessment {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}

	out := a.Clone()

	seen := make(map[string]bool, len(out.Issues))
	for _, is := range out.Issues {
		seen[is.IssueType] = true
	}
	for _, is := range b.Clone().Issues {
		if !seen[is.IssueType] {
			out.Issues = append(out.Issues, is)
			seen[is.IssueType] = true
		}
	}

	have := make(map[string]bool, len(out.Strengths))
	for _, s := range out.Strengths {
		have[s] = true
	}
	for _, s := range b.Strengths {
		if !have[s] {
			out.Strengths = append(out.Strengths, s)
			have[s] = true
		}
	}

	out.OverallScore = (a.OverallScore + b.OverallScore) / 2
	out.QualityRating = RatingFor(out.OverallScore)
	return out
}

var severityWeights = map[Severity]float64{
	SeverityMajor:    0.3,
	SeverityModerate: 0.2,
	SeverityMinor:    0.1,
}

// FromRuleIssues scores a list of rule violations on their own. Each issue
// costs a severity-weighted penalty, capped at 0.8 in total.
func FromRuleIssues(issues []Issue) *Assessment {
	if len(issues) == 0 {
		return &Assessment{
			OverallScore:  0.5,
			QualityRating: RatingFor(0.5),
			Issues:        []Issue{},
			Strengths:     []string{},
		}
	}

	penalty := 0.0
	for _, is := range issues {
		w, ok := severityWeights[is.Severity]
		if !ok {
			w = severityWeights[SeverityModerate]
		}
		penalty += w
	}
	penalty = math.Min(penalty, 0.8)
	score := math.Max(0.2, 1-penalty)

	return (&Assessment{
		OverallScore:  score,
		QualityRating: RatingFor(score),
		Issues:        issues,
		Strengths:     []string{},
	}).Clone()
}
