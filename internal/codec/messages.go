package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region messages

// TrainRequest asks the remote side to train a network of HiddenUnits
// width starting from Parameters.
type TrainRequest struct {
	HiddenUnits int
	Parameters  []float64
}

// TrainResponse carries the training result and the trained parameters.
type TrainResponse struct {
	Result     selection.TrainingResult
	Parameters []float64
}

// Description is the remote error functional's shape.
type Description struct {
	InputsCount  int
	OutputsCount int
	HiddenUnits  int
}

func (r TrainRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"hidden_units": r.HiddenUnits,
		"parameters":   floatList(r.Parameters),
	})
}

func trainRequestFrom(s *structpb.Struct) (TrainRequest, error) {
	f := s.GetFields()
	hv, ok := f["hidden_units"]
	if !ok {
		return TrainRequest{}, fmt.Errorf("train request: missing hidden_units")
	}
	return TrainRequest{
		HiddenUnits: int(hv.GetNumberValue()),
		Parameters:  floatsFrom(f["parameters"]),
	}, nil
}

func (r TrainResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"method":                string(r.Result.Method),
		"final_training_error":  r.Result.FinalTrainingError,
		"final_selection_error": r.Result.FinalSelectionError,
		"parameters":            floatList(r.Parameters),
	})
}

func trainResponseFrom(s *structpb.Struct) TrainResponse {
	f := s.GetFields()
	return TrainResponse{
		Result: selection.TrainingResult{
			Method:              selection.TrainingMethod(f["method"].GetStringValue()),
			FinalTrainingError:  f["final_training_error"].GetNumberValue(),
			FinalSelectionError: f["final_selection_error"].GetNumberValue(),
		},
		Parameters: floatsFrom(f["parameters"]),
	}
}

func (d Description) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"inputs_count":  d.InputsCount,
		"outputs_count": d.OutputsCount,
		"hidden_units":  d.HiddenUnits,
	})
}

func descriptionFrom(s *structpb.Struct) Description {
	f := s.GetFields()
	return Description{
		InputsCount:  int(f["inputs_count"].GetNumberValue()),
		OutputsCount: int(f["outputs_count"].GetNumberValue()),
		HiddenUnits:  int(f["hidden_units"].GetNumberValue()),
	}
}

// structpb.NewValue only accepts []any for lists.
func floatList(v []float64) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func floatsFrom(v *structpb.Value) []float64 {
	vals := v.GetListValue().GetValues()
	if len(vals) == 0 {
		return nil
	}
	out := make([]float64, len(vals))
	for i, x := range vals {
		out[i] = x.GetNumberValue()
	}
	return out
}

// #endregion messages
