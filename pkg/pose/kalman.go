package pose

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	stateDim       = 6
	measurementDim = 3

	// MinInnovationDeterminant is the smallest det(S) the filter accepts
	// before treating the innovation covariance as singular.
	MinInnovationDeterminant = 1e-12
)

// FilterState is a copy of the filter internals.
type FilterState struct {
	Position   Vector3
	Velocity   Vector3
	Covariance [stateDim][stateDim]float64
}

// KalmanFilter is a constant-velocity filter over a 3D position with state
// [x, y, z, vx, vy, vz]. Only position is observed. It is not safe for
// concurrent use.
type KalmanFilter struct {
	motionMat  *mat.Dense // F
	updateMat  *mat.Dense // H
	processCov *mat.DiagDense
	measureCov *mat.DiagDense

	mean *mat.VecDense
	cov  *mat.Dense
}

// NewKalmanFilter returns a filter with zero state and identity covariance.
func NewKalmanFilter(cfg FilterConfig) *KalmanFilter {
	motionMat := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		motionMat.Set(i, i, 1)
	}
	for i := 0; i < measurementDim; i++ {
		motionMat.Set(i, measurementDim+i, 1)
	}

	updateMat := mat.NewDense(measurementDim, stateDim, nil)
	for i := 0; i < measurementDim; i++ {
		updateMat.Set(i, i, 1)
	}

	q := make([]float64, stateDim)
	for i := range q {
		q[i] = cfg.ProcessNoise
	}
	r := make([]float64, measurementDim)
	for i := range r {
		r[i] = cfg.MeasurementNoise
	}

	kf := &KalmanFilter{
		motionMat:  motionMat,
		updateMat:  updateMat,
		processCov: mat.NewDiagDense(stateDim, q),
		measureCov: mat.NewDiagDense(measurementDim, r),
	}
	kf.Reset()
	return kf
}

// Reset returns the filter to zero state and identity covariance.
func (kf *KalmanFilter) Reset() {
	kf.mean = mat.NewVecDense(stateDim, nil)
	kf.cov = mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		kf.cov.Set(i, i, 1)
	}
}

// Predict advances the state one step and returns the predicted position.
func (kf *KalmanFilter) Predict() Vector3 {
	var mean mat.VecDense
	mean.MulVec(kf.motionMat, kf.mean)
	kf.mean = &mean

	var cov mat.Dense
	cov.Mul(kf.motionMat, kf.cov)
	cov.Mul(&cov, kf.motionMat.T())
	cov.Add(&cov, kf.processCov)
	kf.cov = &cov

	return kf.position()
}

// Update runs one predict step followed by a correction with the measured
// position and returns the filtered position. A non-finite measurement or a
// singular innovation covariance leaves the filter untouched.
func (kf *KalmanFilter) Update(z Vector3) (Vector3, error) {
	if !z.Finite() {
		return Vector3{}, ErrNonFiniteMeasurement
	}

	prevMean := mat.VecDenseCopyOf(kf.mean)
	prevCov := mat.DenseCopyOf(kf.cov)
	restore := func() {
		kf.mean = prevMean
		kf.cov = prevCov
	}

	kf.Predict()

	// project to measurement space
	var hp mat.Dense
	hp.Mul(kf.updateMat, kf.cov)
	var s mat.Dense
	s.Mul(&hp, kf.updateMat.T())
	s.Add(&s, kf.measureCov)

	innovationCov := mat.NewSymDense(measurementDim, nil)
	for i := 0; i < measurementDim; i++ {
		for j := i; j < measurementDim; j++ {
			innovationCov.SetSym(i, j, (s.At(i, j)+s.At(j, i))/2)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(innovationCov); !ok {
		restore()
		return Vector3{}, fmt.Errorf("%w: failed to factorize", ErrSingularInnovation)
	}
	if det := chol.Det(); det < MinInnovationDeterminant {
		restore()
		return Vector3{}, fmt.Errorf("%w: det %g", ErrSingularInnovation, det)
	}

	// K^T = S^-1 H P, since S and P are symmetric
	var gainT mat.Dense
	if err := chol.SolveTo(&gainT, &hp); err != nil {
		restore()
		return Vector3{}, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}
	gain := gainT.T()

	innovation := mat.NewVecDense(measurementDim, []float64{z.X, z.Y, z.Z})
	var projected mat.VecDense
	projected.MulVec(kf.updateMat, kf.mean)
	innovation.SubVec(innovation, &projected)

	var correction mat.VecDense
	correction.MulVec(gain, innovation)
	kf.mean.AddVec(kf.mean, &correction)

	// P = (I - K H) P
	var kh mat.Dense
	kh.Mul(gain, kf.updateMat)
	ikh := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		ikh.Set(i, i, 1)
	}
	ikh.Sub(ikh, &kh)
	var cov mat.Dense
	cov.Mul(ikh, kf.cov)
	for i := 0; i < stateDim; i++ {
		for j := i + 1; j < stateDim; j++ {
			v := (cov.At(i, j) + cov.At(j, i)) / 2
			cov.Set(i, j, v)
			cov.Set(j, i, v)
		}
	}
	kf.cov = &cov

	return kf.position(), nil
}

// Position returns the current position estimate.
func (kf *KalmanFilter) Position() Vector3 {
	return kf.position()
}

// State returns a copy of the filter state.
func (kf *KalmanFilter) State() FilterState {
	var st FilterState
	st.Position = kf.position()
	st.Velocity = Vector3{X: kf.mean.AtVec(3), Y: kf.mean.AtVec(4), Z: kf.mean.AtVec(5)}
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			st.Covariance[i][j] = kf.cov.At(i, j)
		}
	}
	return st
}

func (kf *KalmanFilter) position() Vector3 {
	return Vector3{X: kf.mean.AtVec(0), Y: kf.mean.AtVec(1), Z: kf.mean.AtVec(2)}
}
