package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dErrors "amlstat/pkg/domain-errors"
)

const (
	MaxIndicators        = 500
	MaxIndicatorCodeLen  = 16
	MaxIndicatorLabelLen = 256
	SubmitThresholdPct   = 80
	maxCompletionRatePct = 100
)

// Indicator is one statistical line of a submission form. A nil Value means
// the indicator has not been answered.
type Indicator struct {
	Code  string  `json:"code"`
	Label string  `json:"label"`
	Value *string `json:"value"`
}

type indicatorDocument struct {
	Code  string          `json:"code"`
	Label string          `json:"label"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON accepts a string, a number or null as the value. Numbers keep
// their literal text so "120.5" and 120.5 store the same answer. Booleans,
// objects and arrays are validation errors.
func (i *Indicator) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc indicatorDocument
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	value, err := decodeValue(doc.Value)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("indicator %q: %s", doc.Code, err))
	}
	*i = Indicator{Code: doc.Code, Label: doc.Label, Value: value}
	return nil
}

func decodeValue(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		s := n.String()
		return &s, nil
	default:
		return nil, errors.New("value must be a string, a number or null")
	}
}

// IsFilled reports whether the indicator carries an answer. Whitespace-only
// answers count as filled.
func (i Indicator) IsFilled() bool {
	return i.Value != nil && *i.Value != ""
}

// Completion summarizes how much of a form has been answered.
type Completion struct {
	Filled int
	Total  int
	Rate   int
}

// ComputeCompletion counts filled indicators and derives the completion rate
// as a whole percentage rounded half up. An empty list is 0% complete.
func ComputeCompletion(indicators []Indicator) Completion {
	total := len(indicators)
	filled := 0
	for _, ind := range indicators {
		if ind.IsFilled() {
			filled++
		}
	}
	return Completion{Filled: filled, Total: total, Rate: RoundPercent(filled, total)}
}

// RoundPercent returns round(100*part/whole) with halves rounded up, clamped
// to [0,100]. A zero whole yields 0.
func RoundPercent(part, whole int) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	pct := (200*part + whole) / (2 * whole)
	return min(pct, maxCompletionRatePct)
}

// ValidateIndicators checks structural rules on a submitted indicator list.
func ValidateIndicators(indicators []Indicator) error {
	if len(indicators) > MaxIndicators {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d indicators are allowed", MaxIndicators))
	}
	seen := make(map[string]struct{}, len(indicators))
	for i, ind := range indicators {
		if ind.Code == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("indicator %d: code is required", i))
		}
		if len(ind.Code) > MaxIndicatorCodeLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("indicator %q: code exceeds %d characters", ind.Code, MaxIndicatorCodeLen))
		}
		if len(ind.Label) > MaxIndicatorLabelLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("indicator %q: label exceeds %d characters", ind.Code, MaxIndicatorLabelLen))
		}
		if _, dup := seen[ind.Code]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("indicator %q appears more than once", ind.Code))
		}
		seen[ind.Code] = struct{}{}
	}
	return nil
}

// NormalizeIndicators trims codes and labels. Values are kept verbatim.
func NormalizeIndicators(indicators []Indicator) []Indicator {
	out := make([]Indicator, len(indicators))
	for i, ind := range indicators {
		out[i] = Indicator{
			Code:  strings.TrimSpace(ind.Code),
			Label: strings.TrimSpace(ind.Label),
			Value: cloneValue(ind.Value),
		}
	}
	return out
}

func cloneIndicators(in []Indicator) []Indicator {
	if in == nil {
		return nil
	}
	out := make([]Indicator, len(in))
	for i, ind := range in {
		out[i] = Indicator{Code: ind.Code, Label: ind.Label, Value: cloneValue(ind.Value)}
	}
	return out
}

func cloneValue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
