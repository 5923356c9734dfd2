package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"fae/ml"
)

// FireRequest is the body of POST /predict. Pointers tell a missing field from a zero.
type FireRequest struct {
	SIZE         *float64 `json:"SIZE"`
	FUELLpg      *float64 `json:"FUEL_lpg"`
	FUELKerosene *float64 `json:"FUEL_kerosene"`
	FUELThinner  *float64 `json:"FUEL_thinner"`
	DISTANCE     *float64 `json:"DISTANCE"`
	DESIBEL      *float64 `json:"DESIBEL"`
	AIRFLOW      *float64 `json:"AIRFLOW"`
	FREQUENCY    *float64 `json:"FREQUENCY"`
}

// ValidationError rejects a request before it reaches the model.
type ValidationError struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type requestField struct {
	name  string
	value *float64
	flag  bool
}

func (req *FireRequest) fields() []requestField {
	return []requestField{
		{name: "SIZE", value: req.SIZE},
		{name: "FUEL_lpg", value: req.FUELLpg, flag: true},
		{name: "FUEL_kerosene", value: req.FUELKerosene, flag: true},
		{name: "FUEL_thinner", value: req.FUELThinner, flag: true},
		{name: "DISTANCE", value: req.DISTANCE},
		{name: "DESIBEL", value: req.DESIBEL},
		{name: "AIRFLOW", value: req.AIRFLOW},
		{name: "FREQUENCY", value: req.FREQUENCY},
	}
}

// Validate checks presence and domain of every field. Fuel flags are 0 or 1
// and at most one of them is set; gasoline is all flags at 0.
func (req *FireRequest) Validate() error {
	fuels := 0
	for _, f := range req.fields() {
		if f.value == nil {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
		v := *f.value
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		case f.flag && v != 0 && v != 1:
			return &ValidationError{Field: f.name, Reason: "must be 0 or 1"}
		case v < 0:
			return &ValidationError{Field: f.name, Reason: "must not be negative"}
		}
		if f.flag && v == 1 {
			fuels++
		}
	}
	if fuels > 1 {
		return &ValidationError{Field: "FUEL", Reason: "at most one fuel flag may be set"}
	}
	return nil
}

// Row converts a validated request into the pre-encoded row the model serves.
func (req *FireRequest) Row() ml.FeatureRow {
	fields := req.fields()
	row := make(ml.FeatureRow, 0, len(fields))
	for _, f := range fields {
		row = append(row, ml.Field{Name: f.name, Value: ml.Number(*f.value)})
	}
	return row
}

// DecodeFireRequest reads exactly one JSON object with no unknown fields.
func DecodeFireRequest(r io.Reader) (*FireRequest, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var req FireRequest
	if err := decoder.Decode(&req); err != nil {
		return nil, decodeError(err)
	}
	if decoder.More() {
		return nil, &ValidationError{Field: "body", Reason: "must contain a single JSON object"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return &ValidationError{Field: "body", Reason: "is empty"}
	case errors.As(err, &typeErr):
		return &ValidationError{Field: typeErr.Field, Reason: "must be a number"}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &ValidationError{Field: "body", Reason: "is not valid JSON"}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return &ValidationError{Field: name, Reason: "is not a model feature"}
	case errors.As(err, &maxBytes):
		return &ValidationError{Field: "body", Reason: fmt.Sprintf("exceeds %d bytes", maxBytes.Limit)}
	default:
		return &ValidationError{Field: "body", Reason: err.Error()}
	}
}
