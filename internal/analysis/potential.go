package analysis

import (
	"math"
	"sort"

	"hydro-dispatch/internal/pddd"
)

// Summary is a distribution summary of a marginal-value series.
type Summary struct {
	Count int `json:"count"`

	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P05  float64 `json:"p05"`
	P95  float64 `json:"p95"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`
}

// MarginalCost summarizes the system marginal cost (CMO) of a run, plus the
// arbitrage a canonical storage unit could earn against it.
type MarginalCost struct {
	Summary
	// ArbitrageValue is the profit ($) of a canonical 1 MW / 1 MWh lossless
	// store starting half full, trading against the CMO series.
	ArbitrageValue float64 `json:"arbitrage_value"`
}

func Summarize(series []float64) Summary {
	s := Summary{Count: len(series)}
	if len(series) == 0 {
		return s
	}
	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	vals := make([]float64, 0, len(series))
	for _, v := range series {
		vals = append(vals, v)
		sum += v
		if v < minv {
			minv = v
		}
		if v > maxv {
			maxv = v
		}
	}
	sort.Float64s(vals)
	s.Min = minv
	s.Max = maxv
	s.Mean = sum / float64(len(vals))
	s.P05 = percentileSorted(vals, 0.05)
	s.P95 = percentileSorted(vals, 0.95)
	s.SpreadP95P05 = s.P95 - s.P05
	return s
}

// SummarizeCMO summarizes the marginal cost of a materialized run.
// CMO duals are per period; they are reported per MWh.
func SummarizeCMO(f *pddd.FixedModel, periodHours float64) MarginalCost {
	if periodHours <= 0 {
		periodHours = 1
	}
	prices := make([]float64, len(f.CMO))
	for t, v := range f.CMO {
		prices[t] = v / periodHours
	}
	return MarginalCost{
		Summary:        Summarize(prices),
		ArbitrageValue: arbitrageCanonical(prices, periodHours),
	}
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// arbitrageCanonical runs a DP over a 1 MWh store whose state moves one
// dt-sized step per period (charge, idle or discharge at 1 MW).
func arbitrageCanonical(prices []float64, dt float64) float64 {
	if len(prices) == 0 || dt <= 0 {
		return 0
	}
	steps := int(math.Round(1.0 / dt))
	if steps < 1 {
		steps = 1
	}
	nStates := steps + 1
	negInf := -1e100
	dp := make([]float64, nStates)
	next := make([]float64, nStates)
	for i := range dp {
		dp[i] = negInf
	}
	dp[int(math.Round(0.5*float64(steps)))] = 0

	for _, price := range prices {
		for i := range next {
			next[i] = negInf
		}
		for s := 0; s < nStates; s++ {
			if dp[s] <= negInf/2 {
				continue
			}
			if dp[s] > next[s] {
				next[s] = dp[s]
			}
			if s < steps {
				if v := dp[s] - price*dt; v > next[s+1] {
					next[s+1] = v
				}
			}
			if s > 0 {
				if v := dp[s] + price*dt; v > next[s-1] {
					next[s-1] = v
				}
			}
		}
		dp, next = next, dp
	}

	best := negInf
	for _, v := range dp {
		if v > best {
			best = v
		}
	}
	if best <= negInf/2 {
		return 0
	}
	return best
}
