package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("design matrix is singular or ill-conditioned")

// OLSResult holds an ordinary least squares fit.
type OLSResult struct {
	Coeffs    []float64
	StdErrors []float64
	RSS       float64
	Fitted    []float64
	Residuals []float64
}

// OLS regresses y on the columns of x (one row per observation).
// Standard errors come from s^2 * diag((X'X)^-1).
func OLS(x [][]float64, y []float64) (*OLSResult, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, errors.New("empty or mismatched regression input")
	}
	k := len(x[0])
	if k == 0 || n < k {
		return nil, ErrSingular
	}

	design := mat.NewDense(n, k, nil)
	for i := range x {
		design.SetRow(i, x[i])
	}
	yVec := mat.NewVecDense(n, y)

	var qr mat.QR
	qr.Factorize(design)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yVec); err != nil {
		return nil, ErrSingular
	}

	result := &OLSResult{
		Coeffs:    make([]float64, k),
		Fitted:    make([]float64, n),
		Residuals: make([]float64, n),
	}
	for j := 0; j < k; j++ {
		result.Coeffs[j] = beta.AtVec(j)
	}

	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += result.Coeffs[j] * x[i][j]
		}
		result.Fitted[i] = pred
		result.Residuals[i] = y[i] - pred
		result.RSS += result.Residuals[i] * result.Residuals[i]
	}

	if n > k {
		var xtx, inv mat.Dense
		xtx.Mul(design.T(), design)
		if err := inv.Inverse(&xtx); err != nil {
			// Coefficients are still usable; standard errors are not.
			return result, nil
		}
		s2 := result.RSS / float64(n-k)
		result.StdErrors = make([]float64, k)
		for j := 0; j < k; j++ {
			result.StdErrors[j] = sqrtNonNeg(s2 * inv.At(j, j))
		}
	}
	return result, nil
}

func sqrtNonNeg(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
