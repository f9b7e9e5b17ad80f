package codec

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/order-selection/internal/network"
	"github.com/danielpatrickdp/order-selection/internal/selection"
)

var _ selection.Trainer = (*TrainerClient)(nil)

// #region mock
type mockTrainerService struct {
	trainReq  *structpb.Struct
	trainResp *structpb.Struct
	trainErr  error

	describeResp *structpb.Struct
	describeErr  error
}

func (m *mockTrainerService) Train(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.trainReq = in
	return m.trainResp, m.trainErr
}

func (m *mockTrainerService) Describe(_ context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return m.describeResp, m.describeErr
}

// fixedTrainer sets every parameter to value and reports fixed errors.
type fixedTrainer struct {
	net   selection.ArchitectureMutator
	value float64
	calls int
	err   error
}

func (f *fixedTrainer) Train(context.Context) (selection.TrainingResult, error) {
	f.calls++
	if f.err != nil {
		return selection.TrainingResult{}, f.err
	}
	p := f.net.FlattenParameters()
	for i := range p {
		p[i] = f.value
	}
	if err := f.net.SetParameters(p); err != nil {
		return selection.TrainingResult{}, err
	}
	return selection.TrainingResult{
		Method:              selection.MethodGradientDescent,
		FinalTrainingError:  0.25,
		FinalSelectionError: 0.5,
	}, nil
}

func (f *fixedTrainer) Scorer() selection.Scorer { return scorerShape{2, 1} }

type scorerShape [2]int

func (s scorerShape) InputsCount() int  { return s[0] }
func (s scorerShape) OutputsCount() int { return s[1] }

func mustPerceptron(t *testing.T, arch ...int) *network.Perceptron {
	t.Helper()
	p, err := network.NewPerceptron(arch, 1)
	if err != nil {
		t.Fatalf("new perceptron: %v", err)
	}
	return p
}

// #endregion mock

// #region mock-tests
func TestNewTrainerClientInvalidAddr(t *testing.T) {
	client, err := NewTrainerClient("localhost:0", mustPerceptron(t, 2, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer client.Close()
}

func TestTrainerClient_ScorerNilBeforeDescribe(t *testing.T) {
	c := NewTrainerClientWithService(&mockTrainerService{}, mustPerceptron(t, 2, 1, 1))
	if c.Scorer() != nil {
		t.Fatal("expected nil scorer before Describe")
	}
}

func TestTrainerClient_Describe(t *testing.T) {
	resp, _ := Description{InputsCount: 3, OutputsCount: 2, HiddenUnits: 4}.toStruct()
	c := NewTrainerClientWithService(&mockTrainerService{describeResp: resp}, mustPerceptron(t, 3, 1, 2))

	d, err := c.Describe(context.Background())
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.InputsCount != 3 || d.OutputsCount != 2 || d.HiddenUnits != 4 {
		t.Errorf("description = %+v", d)
	}
	s := c.Scorer()
	if s == nil || s.InputsCount() != 3 || s.OutputsCount() != 2 {
		t.Errorf("scorer = %+v", s)
	}
}

func TestTrainerClient_DescribeError(t *testing.T) {
	c := NewTrainerClientWithService(&mockTrainerService{describeErr: errors.New("down")}, mustPerceptron(t, 2, 1, 1))
	if _, err := c.Describe(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Scorer() != nil {
		t.Fatal("failed describe must not install a scorer")
	}
}

func TestTrainerClient_TrainSendsAndInstallsParameters(t *testing.T) {
	net := mustPerceptron(t, 1, 2, 1)
	sent := net.FlattenParameters()
	trained := make([]float64, len(sent))
	for i := range trained {
		trained[i] = float64(i)
	}
	resp, _ := TrainResponse{
		Result:     selection.TrainingResult{Method: selection.MethodQuasiNewton, FinalTrainingError: 1, FinalSelectionError: 2},
		Parameters: trained,
	}.toStruct()
	mock := &mockTrainerService{trainResp: resp}
	c := NewTrainerClientWithService(mock, net)

	res, err := c.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.Method != selection.MethodQuasiNewton || res.FinalTrainingError != 1 || res.FinalSelectionError != 2 {
		t.Errorf("result = %+v", res)
	}

	req, err := trainRequestFrom(mock.trainReq)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.HiddenUnits != 2 {
		t.Errorf("hidden units = %d, want 2", req.HiddenUnits)
	}
	for i := range sent {
		if req.Parameters[i] != sent[i] {
			t.Fatalf("sent parameter %d = %g, want %g", i, req.Parameters[i], sent[i])
		}
	}
	got := net.FlattenParameters()
	for i := range trained {
		if got[i] != trained[i] {
			t.Fatalf("installed parameter %d = %g, want %g", i, got[i], trained[i])
		}
	}
}

func TestTrainerClient_TrainRejectsWrongParameterCount(t *testing.T) {
	resp, _ := TrainResponse{
		Result:     selection.TrainingResult{Method: selection.MethodGradientDescent},
		Parameters: []float64{1, 2},
	}.toStruct()
	c := NewTrainerClientWithService(&mockTrainerService{trainResp: resp}, mustPerceptron(t, 1, 2, 1))
	if _, err := c.Train(context.Background()); err == nil {
		t.Fatal("expected error for mismatched parameters")
	}
}

func TestTrainerClient_TrainRPCError(t *testing.T) {
	c := NewTrainerClientWithService(&mockTrainerService{trainErr: errors.New("boom")}, mustPerceptron(t, 1, 2, 1))
	if _, err := c.Train(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion mock-tests

// #region bufconn-tests
func dialBufconn(t *testing.T, ts *TrainerServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ts)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTrainerRoundTrip(t *testing.T) {
	remoteNet := mustPerceptron(t, 2, 5, 1)
	trainer := &fixedTrainer{net: remoteNet, value: 0.125}
	conn := dialBufconn(t, NewTrainerServer(trainer, remoteNet, nil))

	localNet := mustPerceptron(t, 2, 3, 1)
	client := NewTrainerClientWithConn(conn, localNet)

	d, err := client.Describe(context.Background())
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.InputsCount != 2 || d.OutputsCount != 1 || d.HiddenUnits != 5 {
		t.Errorf("description = %+v", d)
	}

	res, err := client.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.Method != selection.MethodGradientDescent || res.FinalTrainingError != 0.25 || res.FinalSelectionError != 0.5 {
		t.Errorf("result = %+v", res)
	}
	if remoteNet.HiddenUnits() != 3 {
		t.Errorf("remote hidden units = %d, want 3", remoteNet.HiddenUnits())
	}
	for i, p := range localNet.FlattenParameters() {
		if p != 0.125 {
			t.Fatalf("local parameter %d = %g, want 0.125", i, p)
		}
	}
	if trainer.calls != 1 {
		t.Errorf("trainer calls = %d, want 1", trainer.calls)
	}
}

func TestTrainerServer_TrainFailureIsInternal(t *testing.T) {
	remoteNet := mustPerceptron(t, 2, 1, 1)
	trainer := &fixedTrainer{net: remoteNet, err: errors.New("diverged")}
	conn := dialBufconn(t, NewTrainerServer(trainer, remoteNet, nil))

	client := NewTrainerClientWithConn(conn, mustPerceptron(t, 2, 1, 1))
	_, err := client.Train(context.Background())
	if status.Code(errors.Unwrap(err)) != codes.Internal {
		t.Fatalf("code = %v, want Internal (err %v)", status.Code(errors.Unwrap(err)), err)
	}
}

func TestTrainerServer_RejectsBadRequest(t *testing.T) {
	remoteNet := mustPerceptron(t, 2, 1, 1)
	ts := NewTrainerServer(&fixedTrainer{net: remoteNet}, remoteNet, nil)

	req, _ := TrainRequest{HiddenUnits: 0}.toStruct()
	if _, err := ts.Train(context.Background(), req); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("zero width: code = %v", status.Code(err))
	}
	if _, err := ts.Train(context.Background(), &structpb.Struct{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing width: code = %v", status.Code(err))
	}
	req, _ = TrainRequest{HiddenUnits: 1, Parameters: []float64{1}}.toStruct()
	if _, err := ts.Train(context.Background(), req); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad parameters: code = %v", status.Code(err))
	}
}

// #endregion bufconn-tests
