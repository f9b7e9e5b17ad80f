package selection

// #region imports
import (
	"fmt"
	"math/rand/v2"
	"time"
)

// #endregion

// #region proposal

// Proposal is a policy's answer: the next order, or Done with the
// condition that ended the search.
type Proposal struct {
	Order     int
	Done      bool
	Condition StoppingCondition
}

// Next proposes order.
func Next(order int) Proposal {
	return Proposal{Order: order}
}

// Finish signals the policy has nothing left to propose.
func Finish(condition StoppingCondition) Proposal {
	return Proposal{Done: true, Condition: condition}
}

// #endregion

// #region search-policy

// SearchPolicy proposes which order to evaluate next. Policies differ only
// in proposal logic; the controller owns evaluation, caching and the
// global stopping conditions.
type SearchPolicy interface {
	Name() StrategyName
	// Reset prepares the policy for a run over [minOrder, maxOrder].
	Reset(minOrder, maxOrder int, state *StoppingState)
	Propose(history *History, state StoppingState) Proposal
	// Observe is called once per evaluated proposal, after the controller
	// has updated the failure streak and best error in state.
	Observe(rec EvaluationRecord, state *StoppingState)
	Results() StrategyResults
}

// NewPolicy builds the policy named by cfg.Strategy.
func NewPolicy(cfg Config) (SearchPolicy, error) {
	switch cfg.Strategy {
	case StrategyIncremental:
		return NewIncrementalPolicy(cfg.Incremental), nil
	case StrategyGoldenSection:
		return NewGoldenSectionPolicy(cfg.Tolerance), nil
	case StrategySimulatedAnnealing:
		seed := cfg.Annealing.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return NewAnnealingPolicy(cfg.Annealing, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(cfg.Strategy))
	}
}

// #endregion

// #region strategy-results

// StrategyResults is the closed set of per-strategy result details:
// *IncrementalResults, *GoldenSectionResults or *AnnealingResults.
type StrategyResults interface {
	Strategy() StrategyName
	isStrategyResults()
}

// IncrementalResults details a stepwise search.
type IncrementalResults struct {
	Step                     int
	MaximumSelectionFailures int
	SelectionFailures        int
	LastOrder                int
}

// GoldenSectionResults details a golden-section search.
type GoldenSectionResults struct {
	Lower      int // final bracket
	Upper      int
	Narrowings int
}

// AnnealingResults details a simulated-annealing search.
type AnnealingResults struct {
	InitialTemperature float64
	FinalTemperature   float64
	CoolingRate        float64
	CurrentOrder       int
	Accepted           int
	Rejected           int
}

func (*IncrementalResults) Strategy() StrategyName   { return StrategyIncremental }
func (*GoldenSectionResults) Strategy() StrategyName { return StrategyGoldenSection }
func (*AnnealingResults) Strategy() StrategyName     { return StrategySimulatedAnnealing }

func (*IncrementalResults) isStrategyResults()   {}
func (*GoldenSectionResults) isStrategyResults() {}
func (*AnnealingResults) isStrategyResults()     {}

// #endregion
