package codec

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region server

// TrainerServer exposes a local Trainer and its network over gRPC. Calls
// are serialized because they share one network.
type TrainerServer struct {
	trainer selection.Trainer
	network selection.ArchitectureMutator
	logger  *slog.Logger

	mu sync.Mutex
}

// NewTrainerServer wraps trainer, which must train network in place.
func NewTrainerServer(trainer selection.Trainer, network selection.ArchitectureMutator, logger *slog.Logger) *TrainerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainerServer{trainer: trainer, network: network, logger: logger.With("component", "trainer_server")}
}

// NewGRPCServer returns a grpc.Server with ts registered.
func NewGRPCServer(ts *TrainerServer, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	RegisterTrainerServiceServer(s, ts)
	return s
}

// Describe reports the scorer shape and the current hidden width.
func (s *TrainerServer) Describe(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	scorer := s.trainer.Scorer()
	if scorer == nil {
		return nil, status.Error(codes.FailedPrecondition, "trainer has no error functional")
	}
	s.mu.Lock()
	hidden := s.network.HiddenUnits()
	s.mu.Unlock()
	return Description{
		InputsCount:  scorer.InputsCount(),
		OutputsCount: scorer.OutputsCount(),
		HiddenUnits:  hidden,
	}.toStruct()
}

// Train resizes the local network to the requested width, installs the
// given parameters, trains, and returns the trained parameters.
func (s *TrainerServer) Train(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := trainRequestFrom(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.HiddenUnits < 1 {
		return nil, status.Errorf(codes.InvalidArgument, "hidden units %d must be positive", req.HiddenUnits)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resize(req.HiddenUnits); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "resize: %v", err)
	}
	if len(req.Parameters) > 0 {
		if err := s.network.SetParameters(req.Parameters); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "parameters: %v", err)
		}
	}

	res, err := s.trainer.Train(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("train failed", "hidden_units", req.HiddenUnits, "error", err)
		return nil, status.Errorf(codes.Internal, "train: %v", err)
	}
	s.logger.Info("trained",
		"hidden_units", req.HiddenUnits,
		"method", res.Method,
		"training_error", res.FinalTrainingError,
		"selection_error", res.FinalSelectionError,
	)
	return TrainResponse{Result: res, Parameters: s.network.FlattenParameters()}.toStruct()
}

func (s *TrainerServer) resize(units int) error {
	current := s.network.HiddenUnits()
	switch {
	case units > current:
		return s.network.GrowHiddenUnits(units - current)
	case units < current:
		return s.network.ShrinkHiddenUnits(current - units)
	}
	return nil
}

// #endregion server
