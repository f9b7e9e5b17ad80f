package selection

// IncrementalPolicy walks the order range from the minimum in fixed
// steps and stops after too many consecutive non-improving orders.
type IncrementalPolicy struct {
	step        int
	maxFailures int
	maxOrder    int
	next        int
	last        int
	failures    int
}

// NewIncrementalPolicy returns a stepwise policy.
func NewIncrementalPolicy(cfg IncrementalConfig) *IncrementalPolicy {
	step := cfg.Step
	if step < 1 {
		step = 1
	}
	return &IncrementalPolicy{step: step, maxFailures: cfg.MaximumSelectionFailures}
}

func (p *IncrementalPolicy) Name() StrategyName { return StrategyIncremental }

func (p *IncrementalPolicy) Reset(minOrder, maxOrder int, _ *StoppingState) {
	p.maxOrder = maxOrder
	p.next = minOrder
	p.last = 0
	p.failures = 0
}

func (p *IncrementalPolicy) Propose(_ *History, state StoppingState) Proposal {
	if p.maxFailures > 0 && state.SelectionFailures >= p.maxFailures {
		return Finish(StopMaximumSelectionFailures)
	}
	if p.next > p.maxOrder {
		return Finish(StopAlgorithmFinished)
	}
	return Next(p.next)
}

func (p *IncrementalPolicy) Observe(rec EvaluationRecord, state *StoppingState) {
	p.last = rec.Order
	p.next = rec.Order + p.step
	p.failures = state.SelectionFailures
}

func (p *IncrementalPolicy) Results() StrategyResults {
	return &IncrementalResults{
		Step:                     p.step,
		MaximumSelectionFailures: p.maxFailures,
		SelectionFailures:        p.failures,
		LastOrder:                p.last,
	}
}
