package selection

import "errors"

// #region sentinel-errors

// Sentinel errors for order selection. Call sites wrap them with detail,
// so match with errors.Is.
var (
	// ErrConfiguration indicates a missing collaborator or inconsistent
	// configuration detected before any trial runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidArgument indicates a non-positive order, trials number, time
	// or iteration bound.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch indicates the scorer's input/output widths do not
	// match the data source's variable counts.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownTrainingMethod indicates a training result keyed by a method
	// the aggregator does not handle.
	ErrUnknownTrainingMethod = errors.New("unknown training method")

	// ErrUnknownReductionPolicy indicates a reduction policy outside
	// Minimum, Maximum and Mean.
	ErrUnknownReductionPolicy = errors.New("unknown reduction policy")

	// ErrUnknownStrategy indicates a strategy name with no policy.
	ErrUnknownStrategy = errors.New("unknown search strategy")

	// ErrDuplicateOrder indicates a second record for an order already in
	// the history.
	ErrDuplicateOrder = errors.New("order already recorded")

	// ErrOrderNotFound indicates a lookup for an order that was never
	// evaluated.
	ErrOrderNotFound = errors.New("order not found in history")
)

// #endregion sentinel-errors
