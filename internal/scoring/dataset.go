package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoInstances is returned when a use has no instances to score.
var ErrNoInstances = errors.New("no instances")

// #region use

// Use assigns an instance to a partition of the data set.
type Use int

const (
	UseTraining Use = iota
	UseSelection
	UseTesting
	UseUnused
)

func (u Use) String() string {
	switch u {
	case UseTraining:
		return "training"
	case UseSelection:
		return "selection"
	case UseTesting:
		return "testing"
	default:
		return "unused"
	}
}

// #endregion

// #region dataset

// DataSet holds input and target matrices with one row per instance.
type DataSet struct {
	inputs  *mat.Dense
	targets *mat.Dense
	uses    []Use
}

// NewDataSet pairs inputs and targets. Every instance starts as training.
func NewDataSet(inputs, targets *mat.Dense) (*DataSet, error) {
	ri, _ := inputs.Dims()
	rt, _ := targets.Dims()
	if ri != rt {
		return nil, fmt.Errorf("inputs have %d rows, targets have %d", ri, rt)
	}
	return &DataSet{inputs: inputs, targets: targets, uses: make([]Use, ri)}, nil
}

// FromRows splits each row into inputs and the trailing targetCount targets.
func FromRows(rows [][]float64, targetCount int) (*DataSet, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("data set: %w", ErrNoInstances)
	}
	width := len(rows[0])
	if targetCount < 1 || targetCount >= width {
		return nil, fmt.Errorf("data set: %d targets out of %d columns", targetCount, width)
	}
	inCols := width - targetCount
	in := mat.NewDense(len(rows), inCols, nil)
	tg := mat.NewDense(len(rows), targetCount, nil)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("data set: row %d has %d columns, want %d", i, len(row), width)
		}
		in.SetRow(i, row[:inCols])
		tg.SetRow(i, row[inCols:])
	}
	return NewDataSet(in, tg)
}

// LoadCSV reads numeric rows; the last targetCount columns are targets.
// A first row that does not parse as numbers is taken as a header.
func LoadCSV(r io.Reader, targetCount int) (*DataSet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row, err := parseRow(rec)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("csv line %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return FromRows(rows, targetCount)
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, targetCount int) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, targetCount)
}

func parseRow(rec []string) ([]float64, error) {
	row := make([]float64, len(rec))
	for j, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j+1, err)
		}
		row[j] = v
	}
	return row, nil
}

// #endregion

// #region partitions

// Split shuffles instances with seed and assigns the first training share
// to training, the next selection share to selection, the rest to testing.
func (d *DataSet) Split(training, selection float64, seed uint64) error {
	if training <= 0 || selection < 0 || training+selection > 1 {
		return fmt.Errorf("split ratios %g/%g must be positive and sum to at most 1", training, selection)
	}
	n := len(d.uses)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	nTrain := int(float64(n) * training)
	nSel := int(float64(n) * selection)
	for k, i := range order {
		switch {
		case k < nTrain:
			d.uses[i] = UseTraining
		case k < nTrain+nSel:
			d.uses[i] = UseSelection
		default:
			d.uses[i] = UseTesting
		}
	}
	return nil
}

// SetUse assigns instance i to u.
func (d *DataSet) SetUse(i int, u Use) error {
	if i < 0 || i >= len(d.uses) {
		return fmt.Errorf("instance %d out of range [0, %d)", i, len(d.uses))
	}
	d.uses[i] = u
	return nil
}

// Indices returns the instances assigned to u, ascending.
func (d *DataSet) Indices(u Use) []int {
	var out []int
	for i, v := range d.uses {
		if v == u {
			out = append(out, i)
		}
	}
	return out
}

func (d *DataSet) count(u Use) int {
	n := 0
	for _, v := range d.uses {
		if v == u {
			n++
		}
	}
	return n
}

// #endregion

// #region accessors

func (d *DataSet) InstancesCount() int { return len(d.uses) }

func (d *DataSet) InputVariablesCount() int {
	_, c := d.inputs.Dims()
	return c
}

func (d *DataSet) TargetVariablesCount() int {
	_, c := d.targets.Dims()
	return c
}

func (d *DataSet) TrainingInstancesCount() int  { return d.count(UseTraining) }
func (d *DataSet) SelectionInstancesCount() int { return d.count(UseSelection) }
func (d *DataSet) TestingInstancesCount() int   { return d.count(UseTesting) }

// Input returns a read-only view of instance i's inputs.
func (d *DataSet) Input(i int) []float64 { return d.inputs.RawRowView(i) }

// Target returns a read-only view of instance i's targets.
func (d *DataSet) Target(i int) []float64 { return d.targets.RawRowView(i) }

// TargetMean averages the targets of the instances assigned to u.
func (d *DataSet) TargetMean(u Use) ([]float64, error) {
	idx := d.Indices(u)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%s target mean: %w", u, ErrNoInstances)
	}
	mean := make([]float64, d.TargetVariablesCount())
	for _, i := range idx {
		floats.Add(mean, d.Target(i))
	}
	floats.Scale(1/float64(len(idx)), mean)
	return mean, nil
}

// #endregion
