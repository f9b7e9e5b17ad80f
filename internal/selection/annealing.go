package selection

import (
	"math"
	"math/rand/v2"
)

// AnnealingPolicy is a simulated-annealing walk over the order range. The
// neighbourhood radius shrinks with the temperature; worse candidates are
// accepted with probability exp(-delta/T).
type AnnealingPolicy struct {
	cfg AnnealingConfig
	rng *rand.Rand

	minOrder    int
	maxOrder    int
	temperature float64

	current    int
	currentSel float64
	started    bool

	accepted int
	rejected int
}

// NewAnnealingPolicy returns an annealing policy drawing from rng.
func NewAnnealingPolicy(cfg AnnealingConfig, rng *rand.Rand) *AnnealingPolicy {
	return &AnnealingPolicy{cfg: cfg, rng: rng}
}

func (p *AnnealingPolicy) Name() StrategyName { return StrategySimulatedAnnealing }

func (p *AnnealingPolicy) Reset(minOrder, maxOrder int, state *StoppingState) {
	p.minOrder = minOrder
	p.maxOrder = maxOrder
	p.temperature = p.cfg.InitialTemperature
	p.current = minOrder
	p.currentSel = 0
	p.started = false
	p.accepted = 0
	p.rejected = 0
	if state != nil {
		state.Temperature = p.temperature
	}
}

func (p *AnnealingPolicy) Propose(_ *History, _ StoppingState) Proposal {
	if p.temperature < p.cfg.MinimumTemperature {
		return Finish(StopMinimumTemperature)
	}
	if !p.started {
		return Next(p.current)
	}
	return Next(p.neighbour())
}

// neighbour draws a candidate different from the current order.
func (p *AnnealingPolicy) neighbour() int {
	span := p.maxOrder - p.minOrder
	radius := int(math.Round(p.temperature / p.cfg.InitialTemperature * float64(span)))
	radius = max(1, min(radius, span))

	step := 1 + p.rng.IntN(radius)
	if p.rng.IntN(2) == 0 {
		step = -step
	}
	candidate := p.current + step
	if candidate < p.minOrder || candidate > p.maxOrder {
		candidate = p.current - step
	}
	candidate = max(p.minOrder, min(candidate, p.maxOrder))
	if candidate == p.current {
		if p.current < p.maxOrder {
			candidate = p.current + 1
		} else {
			candidate = p.current - 1
		}
	}
	return candidate
}

// Observe applies the acceptance rule and cools the temperature.
func (p *AnnealingPolicy) Observe(rec EvaluationRecord, state *StoppingState) {
	switch {
	case !p.started:
		p.current = rec.Order
		p.currentSel = rec.SelectionError
		p.started = true
	case p.accept(rec.SelectionError - p.currentSel):
		p.current = rec.Order
		p.currentSel = rec.SelectionError
		p.accepted++
	default:
		p.rejected++
	}

	p.temperature *= p.cfg.CoolingRate
	if state != nil {
		state.Temperature = p.temperature
	}
}

func (p *AnnealingPolicy) accept(delta float64) bool {
	if delta <= 0 {
		return true
	}
	return p.rng.Float64() < math.Exp(-delta/p.temperature)
}

func (p *AnnealingPolicy) Results() StrategyResults {
	return &AnnealingResults{
		InitialTemperature: p.cfg.InitialTemperature,
		FinalTemperature:   p.temperature,
		CoolingRate:        p.cfg.CoolingRate,
		CurrentOrder:       p.current,
		Accepted:           p.accepted,
		Rejected:           p.rejected,
	}
}
