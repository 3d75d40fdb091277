package pose

import "math"

// Check names reported in CheckResult and CheckError.
const (
	CheckCompleteness    = "completeness"
	CheckEyeSymmetry     = "eye_symmetry"
	CheckEyebrowSymmetry = "eyebrow_symmetry"
	CheckCheekDepth      = "cheek_depth"
	CheckNoseOffset      = "nose_offset"
)

// Outcome is the result of a single gate check.
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeFailed
	// OutcomeSkipped means the check's landmarks were unavailable. It is not
	// a rejection.
	OutcomeSkipped
	// OutcomeDisabled means the check is switched off by configuration.
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// CheckResult records how one check went.
type CheckResult struct {
	Name      string
	Outcome   Outcome
	Value     float64
	Threshold float64
}

// Report lists every check of a gate evaluation in evaluation order.
type Report struct {
	Results []CheckResult
}

// Passed reports whether no check failed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

// Result returns the result of the named check.
func (r Report) Result(name string) (CheckResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return CheckResult{}, false
}

type check struct {
	name      string
	required  []int
	mandatory bool
	enabled   func(GateConfig) bool
	// measure returns the measured value, the threshold it is compared to and
	// whether the value is acceptable.
	measure func(LandmarkSet, GateConfig) (value, threshold float64, ok bool)
	err     error
}

// Gate decides whether a landmark set is trustworthy enough for geometry.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	cfg    GateConfig
	checks []check
}

// NewGate builds a gate with the mandatory completeness and eye symmetry
// checks followed by the optional checks enabled in cfg.
//
// The eyebrow and cheek checks read landmarks in GeometryIndices, so a set
// lacking them fails completeness before those checks run; they are never
// reported as skipped. Only the nose offset check depends on landmarks
// outside the geometry set (the face contour) and can be skipped.
func NewGate(cfg GateConfig) *Gate {
	return &Gate{
		cfg: cfg,
		checks: []check{
			{
				name:      CheckEyeSymmetry,
				required:  []int{LeftEyeOuter, LeftEyeInner, RightEyeOuter, RightEyeInner},
				mandatory: true,
				measure:   eyeSymmetry,
				err:       ErrAsymmetricDetection,
			},
			{
				name:     CheckEyebrowSymmetry,
				required: []int{LeftEyebrowInner, RightEyebrowInner, LeftEyeTop, RightEyeTop},
				enabled:  func(c GateConfig) bool { return c.CheckEyebrow },
				measure:  eyebrowSymmetry,
				err:      ErrAsymmetricDetection,
			},
			{
				name:     CheckCheekDepth,
				required: []int{LeftCheek, RightCheek},
				enabled:  func(c GateConfig) bool { return c.CheckCheek },
				measure:  cheekDepth,
				err:      ErrAsymmetricDetection,
			},
			{
				name:     CheckNoseOffset,
				required: []int{NoseTip, FaceLeft, FaceRight},
				enabled:  func(c GateConfig) bool { return c.CheckNose },
				measure:  noseOffset,
				err:      ErrPoorQuality,
			},
		},
	}
}

// Validate returns nil when ls passes every evaluated check, otherwise the
// *CheckError of the first failing one.
func (g *Gate) Validate(ls LandmarkSet) error {
	_, err := g.Evaluate(ls)
	return err
}

// Evaluate runs every check and reports each outcome. Evaluation stops at
// the first failure; later checks are not listed.
func (g *Gate) Evaluate(ls LandmarkSet) (Report, error) {
	report := Report{Results: make([]CheckResult, 0, len(g.checks)+1)}

	if missing := ls.Missing(GeometryIndices...); len(missing) > 0 {
		report.Results = append(report.Results, CheckResult{
			Name:    CheckCompleteness,
			Outcome: OutcomeFailed,
			Value:   float64(len(missing)),
		})
		return report, &CheckError{Check: CheckCompleteness, Missing: missing, Err: ErrIncompleteLandmarks}
	}
	report.Results = append(report.Results, CheckResult{Name: CheckCompleteness, Outcome: OutcomePassed})

	for _, c := range g.checks {
		if !c.mandatory && !c.enabled(g.cfg) {
			report.Results = append(report.Results, CheckResult{Name: c.name, Outcome: OutcomeDisabled})
			continue
		}
		if !ls.Has(c.required...) {
			report.Results = append(report.Results, CheckResult{Name: c.name, Outcome: OutcomeSkipped})
			continue
		}

		value, threshold, ok := c.measure(ls, g.cfg)
		res := CheckResult{Name: c.name, Outcome: OutcomePassed, Value: value, Threshold: threshold}
		if !ok {
			res.Outcome = OutcomeFailed
			report.Results = append(report.Results, res)
			return report, &CheckError{Check: c.name, Value: value, Threshold: threshold, Err: c.err}
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// symmetryRatio is min/max of two magnitudes. Two zero magnitudes give 0.
func symmetryRatio(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	hi := math.Max(a, b)
	if hi == 0 {
		return 0
	}
	return math.Min(a, b) / hi
}

func eyeSymmetry(ls LandmarkSet, cfg GateConfig) (float64, float64, bool) {
	left := ls[LeftEyeOuter].X - ls[LeftEyeInner].X
	right := ls[RightEyeOuter].X - ls[RightEyeInner].X
	ratio := symmetryRatio(left, right)
	return ratio, cfg.EyeSymmetryMin, ratio > 0 && ratio >= cfg.EyeSymmetryMin
}

func eyebrowSymmetry(ls LandmarkSet, cfg GateConfig) (float64, float64, bool) {
	left := ls[LeftEyeTop].Y - ls[LeftEyebrowInner].Y
	right := ls[RightEyeTop].Y - ls[RightEyebrowInner].Y
	ratio := symmetryRatio(left, right)
	return ratio, cfg.EyebrowSymmetryMin, ratio > 0 && ratio >= cfg.EyebrowSymmetryMin
}

func cheekDepth(ls LandmarkSet, cfg GateConfig) (float64, float64, bool) {
	diff := math.Abs(ls[LeftCheek].Z - ls[RightCheek].Z)
	return diff, cfg.CheekDepthMax, diff <= cfg.CheekDepthMax
}

func noseOffset(ls LandmarkSet, cfg GateConfig) (float64, float64, bool) {
	left, right := ls[FaceLeft].X, ls[FaceRight].X
	width := math.Abs(right - left)
	if width == 0 {
		return math.Inf(1), cfg.NoseOffsetMax, false
	}
	offset := math.Abs(ls[NoseTip].X-(left+right)/2) / width
	return offset, cfg.NoseOffsetMax, offset <= cfg.NoseOffsetMax
}
