package selection

import "math"

// goldenRatio is (sqrt(5)-1)/2.
var goldenRatio = (math.Sqrt(5) - 1) / 2

// GoldenSectionPolicy narrows a bracket over the order range, assuming
// selection error is unimodal in the order. Probes already in the history
// are reused without retraining.
type GoldenSectionPolicy struct {
	tolerance  float64
	lower      int
	upper      int
	narrowings int
}

// NewGoldenSectionPolicy returns a golden-section policy that converges
// once the bracket is no wider than tolerance orders.
func NewGoldenSectionPolicy(tolerance float64) *GoldenSectionPolicy {
	return &GoldenSectionPolicy{tolerance: tolerance}
}

func (p *GoldenSectionPolicy) Name() StrategyName { return StrategyGoldenSection }

func (p *GoldenSectionPolicy) Reset(minOrder, maxOrder int, _ *StoppingState) {
	p.lower = minOrder
	p.upper = maxOrder
	p.narrowings = 0
}

// Propose returns the first probe of the current bracket that has no
// recorded selection error. When both probes are known the bracket is
// narrowed toward the better one and the next bracket is tried.
func (p *GoldenSectionPolicy) Propose(history *History, _ StoppingState) Proposal {
	for {
		width := p.upper - p.lower
		if float64(width) <= p.tolerance {
			return Finish(StopConverged)
		}

		// Three or fewer integers left: measure them all and stop.
		if width <= 2 {
			for order := p.lower; order <= p.upper; order++ {
				if _, ok := history.SelectionError(order); !ok {
					return Next(order)
				}
			}
			return Finish(StopAlgorithmFinished)
		}

		c, d := p.probes()
		selC, ok := history.SelectionError(c)
		if !ok {
			return Next(c)
		}
		selD, ok := history.SelectionError(d)
		if !ok {
			return Next(d)
		}

		if selC <= selD {
			p.upper = d
		} else {
			p.lower = c
		}
		p.narrowings++
	}
}

// probes returns the two interior points, c < d, of the bracket.
func (p *GoldenSectionPolicy) probes() (int, int) {
	span := float64(p.upper - p.lower)
	c := int(math.Round(float64(p.upper) - goldenRatio*span))
	d := int(math.Round(float64(p.lower) + goldenRatio*span))
	if c <= p.lower {
		c = p.lower + 1
	}
	if d <= c {
		d = c + 1
	}
	if d >= p.upper {
		d = p.upper - 1
		if c >= d {
			c = d - 1
		}
	}
	return c, d
}

func (p *GoldenSectionPolicy) Observe(EvaluationRecord, *StoppingState) {}

func (p *GoldenSectionPolicy) Results() StrategyResults {
	return &GoldenSectionResults{
		Lower:      p.lower,
		Upper:      p.upper,
		Narrowings: p.narrowings,
	}
}
