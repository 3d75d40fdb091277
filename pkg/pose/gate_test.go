package pose

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_FrontalFacePasses(t *testing.T) {
	t.Parallel()

	for name, cfg := range map[string]Config{
		"default":    DefaultConfig(),
		"strict":     StrictConfig(),
		"permissive": PermissiveConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			report, err := NewGate(cfg.Gate).Evaluate(frontalFace())
			require.NoError(t, err)
			assert.True(t, report.Passed())
		})
	}
}

func TestGate_Completeness(t *testing.T) {
	t.Parallel()

	t.Run("short mesh", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()[:300]
		err := NewGate(DefaultConfig().Gate).Validate(ls)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIncompleteLandmarks)

		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CheckCompleteness, ce.Check)
		assert.Contains(t, ce.Missing, RightEyeTop)
		assert.Contains(t, ce.Missing, RightTemple)
	})

	t.Run("legacy 468 point mesh", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()[:468]
		assert.NoError(t, NewGate(DefaultConfig().Gate).Validate(ls))
	})

	t.Run("non-finite landmark counts as missing", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[NoseBridge].Z = math.NaN()
		err := NewGate(DefaultConfig().Gate).Validate(ls)
		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, []int{NoseBridge}, ce.Missing)
	})

	t.Run("empty set", func(t *testing.T) {
		t.Parallel()
		err := NewGate(DefaultConfig().Gate).Validate(nil)
		assert.ErrorIs(t, err, ErrIncompleteLandmarks)
	})
}

func TestGate_EyeSymmetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rightInner float64 // right eye width is 0.75 - rightInner
		threshold  float64
		wantErr    bool
	}{
		{name: "symmetric", rightInner: 0.65, threshold: 0.2},
		{name: "at threshold", rightInner: 0.73, threshold: 0.2},
		{name: "below threshold", rightInner: 0.74, threshold: 0.2, wantErr: true},
		{name: "strict rejects mild asymmetry", rightInner: 0.71, threshold: 0.5, wantErr: true},
		{name: "collapsed eye", rightInner: 0.75, threshold: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ls := frontalFace()
			ls[RightEyeInner].X = tt.rightInner

			cfg := DefaultConfig().Gate
			cfg.EyeSymmetryMin = tt.threshold
			report, err := NewGate(cfg).Evaluate(ls)

			res, ok := report.Result(CheckEyeSymmetry)
			require.True(t, ok)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, OutcomePassed, res.Outcome)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAsymmetricDetection)
			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.InDelta(t, tt.threshold, res.Threshold, 1e-12)
		})
	}
}

func TestGate_BothEyesCollapsed(t *testing.T) {
	t.Parallel()
	ls := frontalFace()
	ls[LeftEyeInner].X = ls[LeftEyeOuter].X
	ls[RightEyeInner].X = ls[RightEyeOuter].X

	err := NewGate(PermissiveConfig().Gate).Validate(ls)
	assert.ErrorIs(t, err, ErrAsymmetricDetection)
}

func TestGate_OptionalChecks(t *testing.T) {
	t.Parallel()

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[NoseTip].X = 0.9

		report, err := NewGate(DefaultConfig().Gate).Evaluate(ls)
		require.NoError(t, err)
		for _, name := range []string{CheckEyebrowSymmetry, CheckCheekDepth, CheckNoseOffset} {
			res, ok := report.Result(name)
			require.True(t, ok, name)
			assert.Equal(t, OutcomeDisabled, res.Outcome, name)
		}
	})

	t.Run("nose offset rejects", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[NoseTip].X = 0.85

		err := NewGate(StrictConfig().Gate).Validate(ls)
		assert.ErrorIs(t, err, ErrPoorQuality)
		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CheckNoseOffset, ce.Check)
		assert.InDelta(t, 0.4375, ce.Value, 1e-9)
	})

	t.Run("cheek depth rejects", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[RightCheek].Z = 0.3

		err := NewGate(StrictConfig().Gate).Validate(ls)
		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CheckCheekDepth, ce.Check)
		assert.ErrorIs(t, err, ErrAsymmetricDetection)
	})

	t.Run("eyebrow symmetry rejects", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[RightEyebrowInner].Y = 0.37

		err := NewGate(StrictConfig().Gate).Validate(ls)
		var ce *CheckError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CheckEyebrowSymmetry, ce.Check)
	})

	t.Run("unavailable landmarks skip instead of failing", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()
		ls[NoseTip].X = 0.85
		ls[FaceRight].X = math.Inf(1)

		report, err := NewGate(StrictConfig().Gate).Evaluate(ls)
		require.NoError(t, err)
		res, ok := report.Result(CheckNoseOffset)
		require.True(t, ok)
		assert.Equal(t, OutcomeSkipped, res.Outcome)

		res, ok = report.Result(CheckCheekDepth)
		require.True(t, ok)
		assert.Equal(t, OutcomePassed, res.Outcome)
	})

	t.Run("brow and cheek gaps fail completeness first", func(t *testing.T) {
		t.Parallel()
		for _, idx := range []int{RightEyebrowInner, LeftCheek} {
			ls := frontalFace()
			ls[idx].Y = math.NaN()

			report, err := NewGate(StrictConfig().Gate).Evaluate(ls)
			require.ErrorIs(t, err, ErrIncompleteLandmarks)
			require.Len(t, report.Results, 1)
			assert.Equal(t, CheckCompleteness, report.Results[0].Name)
			_, listed := report.Result(CheckEyebrowSymmetry)
			assert.False(t, listed)
			_, listed = report.Result(CheckCheekDepth)
			assert.False(t, listed)
		}
	})

	t.Run("contour missing from short mesh", func(t *testing.T) {
		t.Parallel()
		ls := frontalFace()[:454]

		report, err := NewGate(StrictConfig().Gate).Evaluate(ls)
		require.NoError(t, err)
		res, _ := report.Result(CheckNoseOffset)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
	})
}

func TestGate_Idempotent(t *testing.T) {
	t.Parallel()
	gate := NewGate(StrictConfig().Gate)

	inputs := []LandmarkSet{frontalFace(), frontalFace()[:100], nil}
	bad := frontalFace()
	bad[RightEyeInner].X = 0.749
	inputs = append(inputs, bad)

	for _, ls := range inputs {
		r1, err1 := gate.Evaluate(ls)
		r2, err2 := gate.Evaluate(ls)
		assert.Equal(t, r1, r2)
		assert.Equal(t, err1 == nil, err2 == nil)
		if err1 != nil {
			assert.Equal(t, err1.Error(), err2.Error())
			assert.True(t, errors.Is(err2, errors.Unwrap(err1)))
		}
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "passed", OutcomePassed.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "disabled", OutcomeDisabled.String())
}
