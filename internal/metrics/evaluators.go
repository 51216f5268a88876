package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/courtside/internal/action"
	"github.com/ayusman/courtside/internal/detector"
)

// Evaluator assesses form quality. A nil assessment means the evaluator has
// nothing to say about this action.
type Evaluator interface {
	Evaluate(seq []detector.Pose, label action.Label, fps float64) (*Assessment, error)
}

// check is one pass/fail form test.
type check struct {
	issue    Issue
	strength string
	pass     bool
}

// HeuristicEvaluator scores whole-sequence form for shooting, dribbling and
// passing. Other actions are not assessed.
type HeuristicEvaluator struct{}

// Evaluate runs the action-specific checks.
func (HeuristicEvaluator) Evaluate(seq []detector.Pose, label action.Label, fps float64) (*Assessment, error) {
	if len(seq) == 0 {
		return nil, nil
	}

	var checks []check
	switch {
	case label.IsShooting():
		checks = shootingChecks(seq)
	case label == action.Dribbling:
		checks = dribblingChecks(seq)
	case label == action.Passing:
		checks = passingChecks(seq)
	default:
		return nil, nil
	}

	a := &Assessment{Issues: []Issue{}, Strengths: []string{}}
	passed := 0
	for _, c := range checks {
		if c.pass {
			passed++
			a.Strengths = append(a.Strengths, c.strength)
			continue
		}
		a.Issues = append(a.Issues, c.issue)
	}
	a.OverallScore = 0.4 + 0.6*float64(passed)/float64(len(checks))
	a.QualityRating = RatingFor(a.OverallScore)
	return a, nil
}

func shootingChecks(seq []detector.Pose) []check {
	elbows := make([]float64, len(seq))
	knees := make([]float64, len(seq))
	wristY := make([]float64, len(seq))
	for i := range seq {
		p := &seq[i]
		elbows[i] = p.JointAngle(detector.RightShoulder, detector.RightElbow, detector.RightWrist)
		knees[i] = p.JointAngle(detector.RightHip, detector.RightKnee, detector.RightAnkle)
		wristY[i] = p.Points[detector.RightWrist].Y
	}

	setElbow := floats.Min(elbows)
	deepestKnee := floats.Min(knees)
	release := floats.MinIdx(wristY)
	releaseAboveHead := wristY[release] < seq[release].Points[detector.Nose].Y

	return []check{
		{
			pass:     setElbow >= 70 && setElbow <= 110,
			strength: "Elbow sits near 90 degrees at the set point",
			issue: Issue{
				IssueType:      "elbow_angle",
				Severity:       SeverityModerate,
				Description:    "Elbow angle at the set point is outside the ideal range",
				CurrentValue:   Float(setElbow),
				OptimalValue:   "70-110 degrees",
				Recommendation: "Form shooting close to the rim with the elbow under the ball",
			},
		},
		{
			pass:     deepestKnee <= 160,
			strength: "Good knee bend for power",
			issue: Issue{
				IssueType:      "knee_bend",
				Severity:       SeverityMinor,
				Description:    "Legs stay nearly straight through the shot",
				CurrentValue:   Float(deepestKnee),
				OptimalValue:   "below 160 degrees",
				Recommendation: "Dip into the shot and drive up through the legs",
			},
		},
		{
			pass:     releaseAboveHead,
			strength: "High release point",
			issue: Issue{
				IssueType:      "release_point",
				Severity:       SeverityMajor,
				Description:    "Ball is released below head height",
				OptimalValue:   "above the forehead",
				Recommendation: "Finish with the shooting hand above the head",
			},
		},
	}
}

func dribblingChecks(seq []detector.Pose) []check {
	rel := make([]float64, len(seq))
	lean := make([]float64, len(seq))
	for i := range seq {
		p := &seq[i]
		torso := p.TorsoLength()
		if torso == 0 {
			torso = 1
		}
		rel[i] = (p.Points[detector.RightWrist].Y - p.HipCenter().Y) / torso
		d := p.ShoulderCenter().Sub(p.HipCenter())
		lean[i] = math.Abs(math.Atan2(d.X, -d.Y)) * 180 / math.Pi
	}
	height := stat.Mean(rel, nil)
	meanLean := stat.Mean(lean, nil)

	return []check{
		{
			pass:     height >= 0.2,
			strength: "Dribble kept below the waist",
			issue: Issue{
				IssueType:      "dribble_height",
				Severity:       SeverityModerate,
				Description:    "Dribble rises above the waist",
				CurrentValue:   Float(height),
				OptimalValue:   "below the hip",
				Recommendation: "Pound dribbles at knee height",
			},
		},
		{
			pass:     meanLean >= 5,
			strength: "Athletic forward lean",
			issue: Issue{
				IssueType:      "body_posture",
				Severity:       SeverityMinor,
				Description:    "Upright stance while dribbling",
				CurrentValue:   Float(meanLean),
				OptimalValue:   "5-45 degrees forward lean",
				Recommendation: "Bend at the hips and stay low",
			},
		},
	}
}

func passingChecks(seq []detector.Pose) []check {
	ext := make([]float64, len(seq))
	for i := range seq {
		ext[i] = seq[i].JointAngle(detector.RightShoulder, detector.RightElbow, detector.RightWrist)
	}
	maxExt := floats.Max(ext)

	return []check{
		{
			pass:     maxExt >= 150,
			strength: "Full arm extension on the pass",
			issue: Issue{
				IssueType:      "arm_extension",
				Severity:       SeverityModerate,
				Description:    "Passing arm does not fully extend",
				CurrentValue:   Float(maxExt),
				OptimalValue:   "above 150 degrees",
				Recommendation: "Step into the pass and snap the wrists through",
			},
		},
	}
}

// RuleEvaluator applies threshold rules to the key frame of a window and
// scores only the violations it finds. It returns nil when every rule passes.
type RuleEvaluator struct{}

// Evaluate runs the rules for shooting and dribbling actions.
func (RuleEvaluator) Evaluate(seq []detector.Pose, label action.Label, fps float64) (*Assessment, error) {
	if len(seq) == 0 {
		return nil, nil
	}

	var issues []Issue
	switch {
	case label.IsShooting():
		issues = shootingRules(seq)
	case label == action.Dribbling:
		issues = dribblingRules(seq)
	default:
		return nil, nil
	}

	if len(issues) == 0 {
		return nil, nil
	}
	return FromRuleIssues(issues), nil
}

func shootingRules(seq []detector.Pose) []Issue {
	key := &seq[len(seq)/2]
	last := &seq[len(seq)-1]
	torso := key.TorsoLength()
	if torso == 0 {
		torso = 1
	}

	var issues []Issue

	flare := math.Abs(key.Points[detector.RightElbow].X-key.Points[detector.RightShoulder].X) / torso
	if flare > 0.35 {
		issues = append(issues, Issue{
			IssueType:      "elbow_flare",
			Severity:       SeverityModerate,
			Description:    "Shooting elbow flares away from the body",
			CurrentValue:   Float(flare),
			OptimalValue:   "below 0.35 torso lengths",
			Recommendation: "One-hand form shooting with the elbow tucked",
		})
	}

	if last.Points[detector.RightWrist].Y >= last.Points[detector.RightShoulder].Y {
		issues = append(issues, Issue{
			IssueType:      "follow_through",
			Severity:       SeverityMinor,
			Description:    "Shooting hand drops before the ball reaches the rim",
			OptimalValue:   "hold the wrist above the shoulder",
			Recommendation: "Hold the follow through until the ball lands",
		})
	}

	tilt := math.Abs(key.Points[detector.LeftShoulder].Y-key.Points[detector.RightShoulder].Y) / torso
	if tilt > 0.25 {
		issues = append(issues, Issue{
			IssueType:      "body_alignment",
			Severity:       SeverityMinor,
			Description:    "Shoulders are tilted at the set point",
			CurrentValue:   Float(tilt),
			OptimalValue:   "level shoulders",
			Recommendation: "Square shoulders to the rim before rising",
		})
	}

	return issues
}

func dribblingRules(seq []detector.Pose) []Issue {
	key := &seq[len(seq)/2]
	torso := key.TorsoLength()
	if torso == 0 {
		torso = 1
	}

	var issues []Issue

	// Nose dropping toward shoulder height means the eyes are on the ball.
	gap := (key.ShoulderCenter().Y - key.Points[detector.Nose].Y) / torso
	if gap < 0.2 {
		issues = append(issues, Issue{
			IssueType:      "head_position",
			Severity:       SeverityMinor,
			Description:    "Head is down while dribbling",
			CurrentValue:   Float(gap),
			OptimalValue:   "eyes up",
			Recommendation: "Dribble while calling out fingers held up by a partner",
		})
	}

	xs := make([]float64, len(seq))
	for i := range seq {
		xs[i] = seq[i].HipCenter().X / torso
	}
	if len(xs) > 1 {
		if sd := stat.StdDev(xs, nil); sd > 0.5 {
			issues = append(issues, Issue{
				IssueType:      "com_stability",
				Severity:       SeverityModerate,
				Description:    "Center of mass sways side to side",
				CurrentValue:   Float(sd),
				OptimalValue:   "below 0.5 torso lengths",
				Recommendation: "Stationary two-ball dribbling in a wide stance",
			})
		}
	}

	return issues
}
