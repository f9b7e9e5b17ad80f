package selection

// MultiObserver fans progress out to every non-nil observer in order.
type MultiObserver []Observer

// Observers drops nil entries and returns the rest as one Observer.
func Observers(obs ...Observer) Observer {
	var out MultiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m MultiObserver) OnStart(runID string, strategy StrategyName, minOrder, maxOrder int) {
	for _, o := range m {
		o.OnStart(runID, strategy, minOrder, maxOrder)
	}
}

func (m MultiObserver) OnTrial(order, trial int, trainingError, selectionError float64) {
	for _, o := range m {
		o.OnTrial(order, trial, trainingError, selectionError)
	}
}

func (m MultiObserver) OnEvaluation(iteration int, rec EvaluationRecord, cached bool) {
	for _, o := range m {
		o.OnEvaluation(iteration, rec, cached)
	}
}

func (m MultiObserver) OnStop(state StoppingState, condition StoppingCondition) {
	for _, o := range m {
		o.OnStop(state, condition)
	}
}
