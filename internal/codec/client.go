package codec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region client-struct

// TrainerClient is a selection.Trainer backed by a remote training
// service. It ships the live network's parameters out and installs the
// trained parameters back.
type TrainerClient struct {
	conn    *grpc.ClientConn
	client  TrainerServiceClient
	network selection.ArchitectureMutator
	timeout time.Duration

	mu          sync.Mutex
	description *Description
}

// #endregion client-struct

// #region constructor

// NewTrainerClient connects to the training service at addr.
func NewTrainerClient(addr string, network selection.ArchitectureMutator) (*TrainerClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewTrainerClientWithConn(conn, network)
	c.conn = conn
	return c, nil
}

// NewTrainerClientWithConn uses an existing connection. The caller owns it.
func NewTrainerClientWithConn(cc grpc.ClientConnInterface, network selection.ArchitectureMutator) *TrainerClient {
	return NewTrainerClientWithService(NewTrainerServiceClient(cc), network)
}

// NewTrainerClientWithService creates a TrainerClient with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewTrainerClientWithService(svc TrainerServiceClient, network selection.ArchitectureMutator) *TrainerClient {
	return &TrainerClient{client: svc, network: network}
}

// SetTimeout bounds every RPC; 0 means no deadline.
func (c *TrainerClient) SetTimeout(d time.Duration) { c.timeout = d }

// #endregion constructor

// #region close

// Close shuts down the gRPC connection if the client opened it.
func (c *TrainerClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region describe

// Describe fetches the remote error functional's shape. Scorer returns nil
// until Describe has succeeded.
func (c *TrainerClient) Describe(ctx context.Context) (Description, error) {
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	resp, err := c.client.Describe(ctx, &structpb.Struct{})
	if err != nil {
		return Description{}, fmt.Errorf("describe rpc: %w", err)
	}
	d := descriptionFrom(resp)

	c.mu.Lock()
	c.description = &d
	c.mu.Unlock()
	return d, nil
}

// Scorer implements selection.Trainer.
func (c *TrainerClient) Scorer() selection.Scorer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.description == nil {
		return nil
	}
	return remoteScorer{d: *c.description}
}

type remoteScorer struct{ d Description }

func (s remoteScorer) InputsCount() int  { return s.d.InputsCount }
func (s remoteScorer) OutputsCount() int { return s.d.OutputsCount }

// #endregion describe

// #region train

// Train implements selection.Trainer.
func (c *TrainerClient) Train(ctx context.Context) (selection.TrainingResult, error) {
	req, err := TrainRequest{
		HiddenUnits: c.network.HiddenUnits(),
		Parameters:  c.network.FlattenParameters(),
	}.toStruct()
	if err != nil {
		return selection.TrainingResult{}, fmt.Errorf("encode train request: %w", err)
	}

	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	out, err := c.client.Train(ctx, req)
	if err != nil {
		return selection.TrainingResult{}, fmt.Errorf("train rpc: %w", err)
	}
	resp := trainResponseFrom(out)
	if len(resp.Parameters) > 0 {
		if err := c.network.SetParameters(resp.Parameters); err != nil {
			return selection.TrainingResult{}, fmt.Errorf("install trained parameters: %w", err)
		}
	}
	return resp.Result, nil
}

func (c *TrainerClient) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// #endregion train
