package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/order-selection/internal/network"
	"github.com/danielpatrickdp/order-selection/internal/selection"
)

var (
	_ selection.Scorer     = (*NormalizedSquaredError)(nil)
	_ selection.DataSource = (*DataSet)(nil)
)

func linearRows() [][]float64 {
	return [][]float64{{0, 1}, {1, 2}, {2, 3}}
}

func constantNet(t *testing.T, out float64) *network.Perceptron {
	t.Helper()
	p, err := network.NewPerceptron([]int{1, 1, 1}, 1)
	require.NoError(t, err)
	// hidden bias, hidden weight, output bias, output weight
	require.NoError(t, p.SetParameters([]float64{0, 0, out, 0}))
	return p
}

func TestLoadCSV_SkipsHeader(t *testing.T) {
	in := "x1, x2, y\n1,2,3\n4,5,6\n"
	d, err := LoadCSV(strings.NewReader(in), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, d.InstancesCount())
	assert.Equal(t, 2, d.InputVariablesCount())
	assert.Equal(t, 1, d.TargetVariablesCount())
	assert.Equal(t, []float64{4, 5}, d.Input(1))
	assert.Equal(t, []float64{6}, d.Target(1))
}

func TestLoadCSV_RejectsBadRow(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("1,2\n3,x\n"), 1)
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("1,2\n"), 2)
	assert.Error(t, err)
}

func TestDataSet_Split(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(2 * i)}
	}
	d, err := FromRows(rows, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, d.TrainingInstancesCount())

	require.NoError(t, d.Split(0.6, 0.2, 42))
	assert.Equal(t, 6, d.TrainingInstancesCount())
	assert.Equal(t, 2, d.SelectionInstancesCount())
	assert.Equal(t, 2, d.TestingInstancesCount())

	other, err := FromRows(rows, 1)
	require.NoError(t, err)
	require.NoError(t, other.Split(0.6, 0.2, 42))
	assert.Equal(t, d.Indices(UseSelection), other.Indices(UseSelection))

	assert.Error(t, d.Split(0.9, 0.2, 1))
	assert.Error(t, d.Split(0, 0.5, 1))
}

func TestDataSet_SetUse(t *testing.T) {
	d, err := FromRows(linearRows(), 1)
	require.NoError(t, err)
	require.NoError(t, d.SetUse(2, UseSelection))
	assert.Equal(t, []int{2}, d.Indices(UseSelection))
	assert.Error(t, d.SetUse(3, UseSelection))
}

func TestNormalizedSquaredError_Values(t *testing.T) {
	d, err := FromRows(linearRows(), 1)
	require.NoError(t, err)
	ctx := context.Background()

	// targets 1,2,3: mean 2, coefficient 2
	perfectMean := NewNormalizedSquaredError(constantNet(t, 2), d)
	e, err := perfectMean.TrainingError(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e, 1e-12)

	zero := NewNormalizedSquaredError(constantNet(t, 0), d)
	e, err = zero.TrainingError(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, e, 1e-12)

	assert.Equal(t, 1, zero.InputsCount())
	assert.Equal(t, 1, zero.OutputsCount())
}

func TestNormalizedSquaredError_NoSelectionInstances(t *testing.T) {
	d, err := FromRows(linearRows(), 1)
	require.NoError(t, err)
	_, err = NewNormalizedSquaredError(constantNet(t, 0), d).SelectionError(context.Background())
	assert.ErrorIs(t, err, ErrNoInstances)
}

func TestNormalizedSquaredError_DegenerateTargets(t *testing.T) {
	d, err := FromRows([][]float64{{0, 5}, {1, 5}}, 1)
	require.NoError(t, err)
	_, err = NewNormalizedSquaredError(constantNet(t, 0), d).TrainingError(context.Background())

	var de *DegenerateTargetsError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, UseTraining, de.Use)
	assert.Zero(t, de.Coefficient)
}

func TestNormalizedSquaredError_WorkersAgree(t *testing.T) {
	rows := make([][]float64, 37)
	for i := range rows {
		x := float64(i) / 10
		rows[i] = []float64{x, x * x}
	}
	d, err := FromRows(rows, 1)
	require.NoError(t, err)
	net, err := network.NewPerceptron([]int{1, 3, 1}, 5)
	require.NoError(t, err)

	nse := NewNormalizedSquaredError(net, d)
	nse.SetWorkers(1)
	e1, g1, err := nse.Gradient(context.Background())
	require.NoError(t, err)

	nse.SetWorkers(6)
	e6, g6, err := nse.Gradient(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, e1, e6, 1e-12)
	assert.InDeltaSlice(t, g1, g6, 1e-10)
}

func TestNormalizedSquaredError_GradientMatchesFiniteDifferences(t *testing.T) {
	rows := [][]float64{{-1, 0.5, 1}, {0, 1, -0.5}, {0.5, -1, 0.25}, {1, 1, 2}}
	d, err := FromRows(rows, 1)
	require.NoError(t, err)
	net, err := network.NewPerceptron([]int{2, 3, 1}, 9)
	require.NoError(t, err)
	nse := NewNormalizedSquaredError(net, d)
	ctx := context.Background()

	_, grad, err := nse.Gradient(ctx)
	require.NoError(t, err)

	params := net.FlattenParameters()
	const h = 1e-6
	for i := range params {
		orig := params[i]
		params[i] = orig + h
		require.NoError(t, net.SetParameters(params))
		up, err := nse.TrainingError(ctx)
		require.NoError(t, err)
		params[i] = orig - h
		require.NoError(t, net.SetParameters(params))
		down, err := nse.TrainingError(ctx)
		require.NoError(t, err)
		params[i] = orig
		require.NoError(t, net.SetParameters(params))

		assert.InDelta(t, (up-down)/(2*h), grad[i], 1e-5, "parameter %d", i)
	}
}

func TestNormalizedSquaredError_Cancelled(t *testing.T) {
	d, err := FromRows(linearRows(), 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewNormalizedSquaredError(constantNet(t, 0), d).TrainingError(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 4))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, [][]int{{1}, {2}}, chunk([]int{1, 2}, 8))
}
