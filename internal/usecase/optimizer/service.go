package optimizer

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfolio/quantfolio-engine/internal/domain"
)

// Service produces capital allocations from expected returns and a
// covariance matrix. It holds no state between calls.
//
// Failure policy: a numerical solve that fails or does not converge is never
// propagated as an error; the result carries the equal-weight fallback with
// Converged=false. Only invalid configuration (bounds, dimensions) returns
// an error.
type Service struct {
	log *zap.Logger
}

// NewService creates a weight optimizer. A nil logger disables logging.
func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log}
}

// Optimize solves the requested allocation problem.
func (s *Service) Optimize(req Request) (Result, error) {
	n := len(req.IDs)
	if n == 0 {
		return Result{Weights: domain.WeightVector{}, Method: req.Method, Converged: true}, nil
	}
	if len(req.ExpectedReturns) != n {
		return Result{}, fmt.Errorf("%w: %d expected returns for %d instruments",
			domain.ErrInvalidConstraints, len(req.ExpectedReturns), n)
	}
	if req.Covariance.Dim() != n {
		return Result{}, fmt.Errorf("%w: covariance dimension %d for %d instruments",
			domain.ErrInvalidConstraints, req.Covariance.Dim(), n)
	}
	if (req.Constraints == Constraints{}) {
		req.Constraints = DefaultConstraints()
	}
	if err := req.Constraints.Validate(n); err != nil {
		return Result{}, err
	}
	if !finiteCovariance(req.Covariance) {
		s.log.Warn("non-finite covariance, falling back to equal weights",
			zap.String("method", string(req.Method)),
			zap.Int("instruments", n))
		return Result{
			Weights:   domain.EqualWeights(req.IDs),
			Method:    req.Method,
			Converged: false,
			Note:      "non-finite covariance",
		}, nil
	}

	var (
		weights []float64
		err     error
		note    string
	)
	switch req.Method {
	case MethodMeanVariance, "":
		weights, err = s.meanVariance(req.ExpectedReturns, req.Covariance, req.Constraints, req.MeanVariance)
	case MethodRiskParity:
		weights, err = s.riskParity(req.Covariance, req.Constraints, req.RiskParity)
	case MethodMaxSharpe:
		weights, err = s.maxSharpe(req.ExpectedReturns, req.Covariance, req.Constraints, req.MaxSharpe)
	case MethodBlackLitterman:
		weights, note, err = s.blackLitterman(req.Covariance, req.Constraints, req.BlackLitterman)
	case MethodMultiObjective:
		weights, err = s.multiObjective(req.ExpectedReturns, req.Covariance, req.Constraints, req.MultiObjective)
	default:
		return Result{}, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidConstraints, req.Method)
	}

	if err != nil {
		s.log.Warn("optimization fell back to equal weights",
			zap.String("method", string(req.Method)),
			zap.Int("instruments", n),
			zap.Error(err))
		return Result{
			Weights:   domain.EqualWeights(req.IDs),
			Method:    req.Method,
			Converged: false,
			Note:      err.Error(),
		}, nil
	}

	out := make(domain.WeightVector, n)
	for i, id := range req.IDs {
		out[id] = weights[i]
	}
	return Result{Weights: out, Method: req.Method, Converged: true, Note: note}, nil
}

// meanVariance minimizes sqrt(w'Σw) - riskAversion * w'μ.
func (s *Service) meanVariance(mu []float64, cov domain.CovarianceMatrix, cons Constraints, cfg *MeanVarianceConfig) ([]float64, error) {
	c := DefaultMeanVariance()
	if cfg != nil {
		c = *cfg
	}
	return solve(len(mu), cons, func(w []float64) float64 {
		ret := dot(w, mu)
		risk := math.Sqrt(math.Max(quadForm(w, cov), 0))
		return risk - c.RiskAversion*ret
	})
}

// riskParity minimizes the variance of per-asset risk contributions
// w_i * (Σw)_i / sqrt(w'Σw), with an optional linear transaction-cost
// penalty.
func (s *Service) riskParity(cov domain.CovarianceMatrix, cons Constraints, cfg *RiskParityConfig) ([]float64, error) {
	n := cov.Dim()
	var costs []float64
	if cfg != nil && cfg.TransactionCosts != nil {
		if len(cfg.TransactionCosts) != n {
			return nil, fmt.Errorf("%w: %d transaction costs for %d instruments",
				domain.ErrInvalidConstraints, len(cfg.TransactionCosts), n)
		}
		costs = cfg.TransactionCosts
	}
	return solve(n, cons, func(w []float64) float64 {
		vol := math.Sqrt(math.Max(quadForm(w, cov), 0))
		if vol <= 0 {
			return 0
		}
		contribs := make([]float64, n)
		mean := 0.0
		for i := 0; i < n; i++ {
			marginal := 0.0
			for j := 0; j < n; j++ {
				marginal += cov.At(i, j) * w[j]
			}
			contribs[i] = w[i] * marginal / vol
			mean += contribs[i]
		}
		mean /= float64(n)
		loss := 0.0
		for _, c := range contribs {
			loss += (c - mean) * (c - mean)
		}
		if costs != nil {
			loss += dot(costs, w)
		}
		return loss
	})
}

// maxSharpe minimizes the negative Sharpe ratio (w'μ - rf) / sqrt(w'Σw).
func (s *Service) maxSharpe(mu []float64, cov domain.CovarianceMatrix, cons Constraints, cfg *MaxSharpeConfig) ([]float64, error) {
	c := DefaultMaxSharpe()
	if cfg != nil {
		c = *cfg
	}
	return solve(len(mu), cons, func(w []float64) float64 {
		risk := math.Sqrt(math.Max(quadForm(w, cov), 1e-10))
		return -(dot(w, mu) - c.RiskFreeRate) / risk
	})
}

// blackLitterman blends market-implied returns δΣw_market with the investor
// views through the standard posterior formula and hands the blended return
// vector to the mean-variance objective. No views, or a singular view
// system, falls back to the market weights themselves.
func (s *Service) blackLitterman(cov domain.CovarianceMatrix, cons Constraints, cfg *BlackLittermanConfig) ([]float64, string, error) {
	n := cov.Dim()
	c := DefaultBlackLitterman()
	if cfg != nil {
		c = *cfg
		if c.Delta == 0 {
			c.Delta = DefaultBlackLitterman().Delta
		}
		if c.Confidence <= 0 || c.Confidence >= 1 {
			c.Confidence = DefaultBlackLitterman().Confidence
		}
	}

	market := c.MarketWeights
	if market == nil {
		market = make([]float64, n)
		for i := range market {
			market[i] = 1.0 / float64(n)
		}
	} else if len(market) != n {
		return nil, "", fmt.Errorf("%w: %d market weights for %d instruments",
			domain.ErrInvalidConstraints, len(market), n)
	}

	if len(c.Views) == 0 {
		return market, "no views supplied, using market weights", nil
	}

	posterior, ok := s.posteriorReturns(cov, market, c)
	if !ok {
		return market, "singular view system, using market weights", nil
	}

	weights, err := s.meanVariance(posterior, cov, cons, &MeanVarianceConfig{RiskAversion: c.Delta})
	return weights, "", err
}

// posteriorReturns evaluates the Black-Litterman posterior
// π + ΣPᵀ (PΣPᵀ + Ω)⁻¹ (Q - Pπ).
func (s *Service) posteriorReturns(cov domain.CovarianceMatrix, market []float64, c BlackLittermanConfig) ([]float64, bool) {
	n := cov.Dim()
	k := len(c.Views)

	// Implied equilibrium returns π = δΣw.
	pi := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pi[i] += c.Delta * cov.At(i, j) * market[j]
		}
	}

	p := mat.NewDense(k, n, nil)
	q := mat.NewVecDense(k, nil)
	row := 0
	for idx, view := range c.Views {
		if idx < 0 || idx >= n {
			return nil, false
		}
		p.Set(row, idx, 1)
		q.SetVec(row, view)
		row++
	}

	sigma := mat.NewDense(n, n, nil)
	sigma.Copy(cov.Sym())

	// PΣPᵀ and the view uncertainty Ω = diag(PΣPᵀ) (1-conf)/conf.
	var psp mat.Dense
	psp.Product(p, sigma, p.T())
	system := mat.NewDense(k, k, nil)
	system.Copy(&psp)
	scale := (1 - c.Confidence) / c.Confidence
	for i := 0; i < k; i++ {
		system.Set(i, i, system.At(i, i)+psp.At(i, i)*scale)
	}

	// Q - Pπ.
	piVec := mat.NewVecDense(n, pi)
	var pPi mat.VecDense
	pPi.MulVec(p, piVec)
	diff := mat.NewVecDense(k, nil)
	diff.SubVec(q, &pPi)

	var adj mat.VecDense
	if err := adj.SolveVec(system, diff); err != nil {
		return nil, false
	}

	// Σ Pᵀ adj.
	var spt mat.Dense
	spt.Mul(sigma, p.T())
	var tilt mat.VecDense
	tilt.MulVec(&spt, &adj)

	posterior := make([]float64, n)
	for i := 0; i < n; i++ {
		posterior[i] = pi[i] + tilt.AtVec(i)
		if math.IsNaN(posterior[i]) || math.IsInf(posterior[i], 0) {
			return nil, false
		}
	}
	return posterior, true
}

// multiObjective minimizes the negated weighted combination of return, risk,
// and allocation entropy.
func (s *Service) multiObjective(mu []float64, cov domain.CovarianceMatrix, cons Constraints, cfg *MultiObjectiveConfig) ([]float64, error) {
	c := DefaultMultiObjective()
	if cfg != nil {
		c = *cfg
	}
	return solve(len(mu), cons, func(w []float64) float64 {
		ret := dot(w, mu)
		risk := math.Sqrt(math.Max(quadForm(w, cov), 0))
		entropy := 0.0
		for _, v := range w {
			entropy -= v * math.Log(v+1e-8)
		}
		return -(c.ReturnWeight*ret - c.RiskWeight*risk + c.EntropyWeight*entropy)
	})
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func finiteCovariance(cov domain.CovarianceMatrix) bool {
	n := cov.Dim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cov.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// quadForm evaluates w'Σw.
func quadForm(w []float64, cov domain.CovarianceMatrix) float64 {
	sum := 0.0
	for i := range w {
		for j := range w {
			sum += w[i] * w[j] * cov.At(i, j)
		}
	}
	return sum
}
