package domain

import (
	"gonum.org/v1/gonum/mat"
)

// CovarianceMatrix is a square, symmetric return covariance matrix indexed
// by instrument ID. It may be singular when there are fewer observations
// than instruments; consumers must never assume invertibility.
type CovarianceMatrix struct {
	ids []string
	m   *mat.SymDense
}

// NewCovarianceMatrix wraps a symmetric matrix with its instrument index.
// The matrix dimension must match the number of IDs.
func NewCovarianceMatrix(ids []string, m *mat.SymDense) CovarianceMatrix {
	if m.SymmetricDim() != len(ids) {
		panic("covariance dimension does not match instrument count")
	}
	return CovarianceMatrix{ids: ids, m: m}
}

// IdentityCovariance builds the identity fallback used whenever a sample
// covariance cannot be estimated. It is positive definite by construction,
// so downstream optimizers always receive a usable matrix.
func IdentityCovariance(ids []string) CovarianceMatrix {
	n := len(ids)
	if n == 0 {
		return CovarianceMatrix{}
	}
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return CovarianceMatrix{ids: ids, m: m}
}

// Dim returns the number of instruments.
func (c CovarianceMatrix) Dim() int { return len(c.ids) }

// IDs returns the instrument index in matrix order.
func (c CovarianceMatrix) IDs() []string { return c.ids }

// At returns the covariance between the i-th and j-th instruments.
func (c CovarianceMatrix) At(i, j int) float64 { return c.m.At(i, j) }

// Sym exposes the underlying symmetric matrix for numerical routines.
func (c CovarianceMatrix) Sym() *mat.SymDense { return c.m }
