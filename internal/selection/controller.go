package selection

// #region imports
import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// #endregion

// #region controller-struct

// Dependencies are the collaborators borrowed for one Run. The controller
// keeps no reference to them after Run returns.
type Dependencies struct {
	Trainer Trainer
	Network ArchitectureMutator
	Data    DataSource
}

// Controller drives the order-selection loop. Its History persists across
// runs, so a second Run reuses every order already measured.
type Controller struct {
	cfg      Config
	history  *History
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	policy   SearchPolicy
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver attaches a progress observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPolicy overrides the policy built from Config.Strategy.
func WithPolicy(p SearchPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithHistory starts the controller from an existing history.
func WithHistory(h *History) Option {
	return func(c *Controller) { c.history = h }
}

// NewController creates a controller for cfg.
func NewController(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		history: NewHistory(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "selection"))
	return c
}

// #endregion

// #region accessors

// Config returns a copy of the current settings.
func (c *Controller) Config() Config { return c.cfg }

// History returns the controller's evaluation cache.
func (c *Controller) History() *History { return c.history }

// Seed preloads previously measured records into the history.
func (c *Controller) Seed(records []EvaluationRecord) error {
	return c.history.Seed(records)
}

// SeedEntries preloads stored records whose pruned columns are retrained
// on first lookup.
func (c *Controller) SeedEntries(entries []SeedEntry) error {
	return c.history.SeedEntries(entries)
}

// #endregion

// #region setters

func (c *Controller) SetStrategy(name StrategyName) error {
	switch name {
	case StrategyIncremental, StrategyGoldenSection, StrategySimulatedAnnealing:
		c.cfg.Strategy = name
		c.policy = nil
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownStrategy, string(name))
}

func (c *Controller) SetMinimumOrder(order int) error {
	if order < 1 {
		return fmt.Errorf("%w: minimum_order (%d) must be greater than 0", ErrInvalidArgument, order)
	}
	c.cfg.MinimumOrder = order
	return nil
}

// SetMaximumOrder sets the upper bound. The 2*(inputs+outputs) default is
// only reachable through Config.MaximumOrder = 0.
func (c *Controller) SetMaximumOrder(order int) error {
	if order < 1 {
		return fmt.Errorf("%w: maximum_order (%d) must be greater than 0", ErrInvalidArgument, order)
	}
	c.cfg.MaximumOrder = order
	return nil
}

// SetOrderRange sets both bounds at once.
func (c *Controller) SetOrderRange(minOrder, maxOrder int) error {
	if minOrder < 1 || maxOrder < 1 {
		return fmt.Errorf("%w: order bounds (%d, %d) must be greater than 0", ErrInvalidArgument, minOrder, maxOrder)
	}
	if maxOrder <= minOrder {
		return fmt.Errorf("%w: maximum_order (%d) must be greater than minimum_order (%d)",
			ErrConfiguration, maxOrder, minOrder)
	}
	c.cfg.MinimumOrder = minOrder
	c.cfg.MaximumOrder = maxOrder
	return nil
}

func (c *Controller) SetTrialsNumber(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: trials_number (%d) must be greater than 0", ErrInvalidArgument, n)
	}
	c.cfg.TrialsNumber = n
	return nil
}

func (c *Controller) SetSelectionErrorGoal(goal float64) error {
	if goal < 0 {
		return fmt.Errorf("%w: selection_error_goal (%g) must not be negative", ErrInvalidArgument, goal)
	}
	c.cfg.SelectionErrorGoal = goal
	return nil
}

func (c *Controller) SetMaximumIterations(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: maximum_iterations (%d) must be greater than 0", ErrInvalidArgument, n)
	}
	c.cfg.MaximumIterations = n
	return nil
}

func (c *Controller) SetMaximumTime(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: maximum_time (%s) must be greater than 0", ErrInvalidArgument, d)
	}
	c.cfg.MaximumTime = d
	return nil
}

func (c *Controller) SetTolerance(tol float64) error {
	if tol < 0 {
		return fmt.Errorf("%w: tolerance (%g) must not be negative", ErrInvalidArgument, tol)
	}
	c.cfg.Tolerance = tol
	return nil
}

func (c *Controller) SetReductionPolicy(p ReductionPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.cfg.Reduction = p
	return nil
}

func (c *Controller) SetReserveFlags(flags ReserveFlags) {
	c.cfg.Reserve = flags
}

func (c *Controller) SetDisplay(display bool) {
	c.cfg.Display = display
}

// #endregion

// #region check

// Check verifies the collaborators and settings before any training
// happens. Missing or empty collaborators and inverted bounds are
// ErrConfiguration; width disagreements are ErrShapeMismatch.
func (c *Controller) Check(deps Dependencies) error {
	if deps.Trainer == nil {
		return fmt.Errorf("%w: trainer is not attached", ErrConfiguration)
	}
	scorer := deps.Trainer.Scorer()
	if scorer == nil {
		return fmt.Errorf("%w: trainer has no error functional", ErrConfiguration)
	}
	if deps.Network == nil {
		return fmt.Errorf("%w: network is not attached", ErrConfiguration)
	}
	if deps.Network.IsEmpty() {
		return fmt.Errorf("%w: network is empty", ErrConfiguration)
	}
	if n := deps.Network.LayersCount(); n <= 1 {
		return fmt.Errorf("%w: network must have at least one hidden layer (layers=%d)", ErrConfiguration, n)
	}
	if deps.Data == nil {
		return fmt.Errorf("%w: data set is not attached", ErrConfiguration)
	}
	if n := deps.Data.SelectionInstancesCount(); n < 1 {
		return fmt.Errorf("%w: data set has no selection instances", ErrConfiguration)
	}
	if scorer.InputsCount() != deps.Data.InputVariablesCount() {
		return fmt.Errorf("%w: network inputs (%d) != data input variables (%d)",
			ErrShapeMismatch, scorer.InputsCount(), deps.Data.InputVariablesCount())
	}
	if scorer.OutputsCount() != deps.Data.TargetVariablesCount() {
		return fmt.Errorf("%w: network outputs (%d) != data target variables (%d)",
			ErrShapeMismatch, scorer.OutputsCount(), deps.Data.TargetVariablesCount())
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	minOrder, maxOrder := c.cfg.ResolveBounds(deps.Network.InputsCount(), deps.Network.OutputsCount())
	if maxOrder <= minOrder {
		return fmt.Errorf("%w: maximum_order (%d) must be greater than minimum_order (%d)",
			ErrConfiguration, maxOrder, minOrder)
	}
	return nil
}

// #endregion

// #region run

// Run searches the order range and installs the optimum on deps.Network.
// Time is checked before every iteration, so MaximumTime wins over every
// other condition. Cancelling ctx stops the search at the next trial
// boundary and returns ctx's error.
func (c *Controller) Run(ctx context.Context, deps Dependencies) (ModelSelectionResults, error) {
	if err := c.Check(deps); err != nil {
		return ModelSelectionResults{}, err
	}

	policy := c.policy
	if policy == nil {
		p, err := NewPolicy(c.cfg)
		if err != nil {
			return ModelSelectionResults{}, err
		}
		policy = p
	}

	minOrder, maxOrder := c.cfg.ResolveBounds(deps.Network.InputsCount(), deps.Network.OutputsCount())
	runID := uuid.New().String()
	logger := c.logger.With(slog.String("run_id", runID))

	ctx, span := tracer().Start(ctx, "ordersel.run",
		trace.WithAttributes(
			attribute.String("ordersel.run_id", runID),
			attribute.String("ordersel.strategy", string(policy.Name())),
			attribute.Int("ordersel.minimum_order", minOrder),
			attribute.Int("ordersel.maximum_order", maxOrder),
		),
	)
	defer span.End()

	agg := NewTrialAggregator(c.history, deps.Trainer, deps.Network, AggregatorOptions{
		Displacement: c.cfg.Displacement,
		Display:      c.cfg.Display,
		Observer:     c.observer,
		Logger:       c.logger,
		Now:          c.now,
	})

	logger.Info("order selection started",
		slog.String("strategy", string(policy.Name())),
		slog.Int("minimum_order", minOrder),
		slog.Int("maximum_order", maxOrder),
		slog.Int("trials", c.cfg.TrialsNumber),
		slog.String("reduction", string(c.cfg.Reduction)),
		slog.Int("cached_orders", c.history.Len()),
	)

	if c.observer != nil {
		c.observer.OnStart(runID, policy.Name(), minOrder, maxOrder)
	}

	state := StoppingState{BestSelectionError: math.Inf(1)}
	policy.Reset(minOrder, maxOrder, &state)
	start := c.now()

	var condition StoppingCondition
	for {
		state.Elapsed = c.now().Sub(start)
		if state.Elapsed >= c.cfg.MaximumTime {
			condition = StopMaximumTime
			break
		}
		if state.Iterations >= c.cfg.MaximumIterations {
			condition = StopMaximumIterations
			break
		}
		if err := ctx.Err(); err != nil {
			return c.fail(span, fmt.Errorf("order selection cancelled after %d iterations: %w", state.Iterations, err))
		}

		proposal := policy.Propose(c.history, state)
		if proposal.Done {
			condition = proposal.Condition
			break
		}
		if proposal.Order < minOrder || proposal.Order > maxOrder {
			return c.fail(span, fmt.Errorf("%w: %s proposed order %d outside [%d, %d]",
				ErrInvalidArgument, policy.Name(), proposal.Order, minOrder, maxOrder))
		}

		outcome, cached, err := agg.evaluate(ctx, proposal.Order, c.cfg.TrialsNumber, c.cfg.Reduction)
		if err != nil {
			return c.fail(span, fmt.Errorf("iteration %d: %w", state.Iterations+1, err))
		}
		state.Iterations++

		if outcome.SelectionError < state.BestSelectionError {
			state.BestSelectionError = outcome.SelectionError
			state.BestOrder = proposal.Order
			state.SelectionFailures = 0
		} else {
			state.SelectionFailures++
		}

		hit, _ := c.history.Lookup(proposal.Order)
		policy.Observe(hit.Record, &state)
		if c.observer != nil {
			c.observer.OnEvaluation(state.Iterations, hit.Record, cached)
		}
		logger.Debug("order evaluated",
			slog.Int("iteration", state.Iterations),
			slog.Int("order", proposal.Order),
			slog.Float64("training_error", outcome.TrainingError),
			slog.Float64("selection_error", outcome.SelectionError),
			slog.Bool("cached", cached),
			slog.Int("selection_failures", state.SelectionFailures),
		)

		if outcome.SelectionError <= c.cfg.SelectionErrorGoal {
			condition = StopSelectionErrorGoal
			break
		}
	}
	state.Elapsed = c.now().Sub(start)

	results := ModelSelectionResults{
		RunID:             runID,
		Strategy:          policy.Name(),
		MinimumOrder:      minOrder,
		MaximumOrder:      maxOrder,
		History:           pruneHistory(c.history.Records(), c.cfg.Reserve),
		Reserve:           c.cfg.Reserve,
		StoppingCondition: condition,
		Iterations:        state.Iterations,
		Elapsed:           state.Elapsed,
		Details:           policy.Results(),
	}

	if best, ok := c.history.Optimum(minOrder, maxOrder); ok {
		if err := c.install(agg, deps.Network, best); err != nil {
			return c.fail(span, fmt.Errorf("install optimum order %d: %w", best.Order, err))
		}
		results.OptimalOrder = best.Order
		results.FinalTrainingError = best.TrainingError
		results.FinalSelectionError = best.SelectionError
		if c.cfg.Reserve.MinimalParameters {
			results.MinimalParameters = best.Parameters
		}
	}

	recordRun(results.Strategy, condition)
	if c.observer != nil {
		c.observer.OnStop(state, condition)
	}

	span.SetAttributes(
		attribute.String("ordersel.stopping_condition", string(condition)),
		attribute.Int("ordersel.iterations", state.Iterations),
		attribute.Int("ordersel.optimal_order", results.OptimalOrder),
	)
	span.SetStatus(codes.Ok, "")

	logger.Info("order selection finished",
		slog.String("stopping_condition", string(condition)),
		slog.Int("iterations", state.Iterations),
		slog.Int("optimal_order", results.OptimalOrder),
		slog.Float64("selection_error", results.FinalSelectionError),
		slog.Duration("elapsed", state.Elapsed),
	)
	return results, nil
}

// install resizes the network to the optimum and restores its parameters.
func (c *Controller) install(agg *TrialAggregator, network ArchitectureMutator, best EvaluationRecord) error {
	if err := agg.resize(best.Order); err != nil {
		return err
	}
	if best.Parameters == nil {
		c.logger.Warn("optimum has no stored parameters; network keeps its current values",
			slog.Int("order", best.Order))
		return nil
	}
	return network.SetParameters(best.Parameters)
}

func (c *Controller) fail(span trace.Span, err error) (ModelSelectionResults, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Error("order selection failed", slog.String("error", err.Error()))
	return ModelSelectionResults{}, err
}

// #endregion
