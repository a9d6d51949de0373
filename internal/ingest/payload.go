// Package ingest turns raw step submissions into canonical ledger records.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chrisnesbitt427/steplotto/internal/domain"
)

// Shape enumerates the accepted submission forms.
type Shape int

const (
	// ShapeSingleDay carries one count for one date.
	ShapeSingleDay Shape = iota + 1
	// ShapeBackfill carries N counts for the N consecutive days ending on Date.
	ShapeBackfill
)

func (s Shape) String() string {
	switch s {
	case ShapeSingleDay:
		return "single_day"
	case ShapeBackfill:
		return "backfill"
	default:
		return "unknown"
	}
}

// Submission is a decoded, validated payload. Build one with Decode, SingleDay, or Backfill.
type Submission struct {
	Name  string
	Date  domain.Date
	Shape Shape
	// Steps holds one value for ShapeSingleDay and N ≥ 1 values, oldest first, for ShapeBackfill.
	Steps []int64
}

// SingleDay builds a single-day submission.
func SingleDay(name string, date domain.Date, steps int64) (Submission, error) {
	sub := Submission{Name: strings.TrimSpace(name), Date: date, Shape: ShapeSingleDay, Steps: []int64{steps}}
	return sub, sub.Validate()
}

// Backfill builds a backfill submission whose last element belongs to date.
func Backfill(name string, date domain.Date, steps []int64) (Submission, error) {
	sub := Submission{Name: strings.TrimSpace(name), Date: date, Shape: ShapeBackfill, Steps: append([]int64(nil), steps...)}
	return sub, sub.Validate()
}

// Validate checks a Submission built outside Decode.
func (s Submission) Validate() error {
	if s.Name == "" {
		return domain.Invalid("name", "is required")
	}
	if s.Date.IsZero() {
		return domain.Invalid("date", "is required")
	}
	switch s.Shape {
	case ShapeSingleDay:
		if len(s.Steps) != 1 {
			return domain.Invalid("steps", "single-day submission needs exactly one value")
		}
	case ShapeBackfill:
		if len(s.Steps) == 0 {
			return domain.Invalid("steps", "backfill array must not be empty")
		}
	default:
		return domain.Invalid("steps", "unknown submission shape")
	}
	for i, v := range s.Steps {
		if v < 0 {
			return domain.Invalid(stepsField(s.Shape, i), "must not be negative, got %d", v)
		}
	}
	return nil
}

// Records expands the submission into ledger records, oldest first. Element i of a backfill
// of length N is dated Date - (N-1-i) days. Every record carries ingestedAt.
func (s Submission) Records(ingestedAt time.Time) []domain.StepRecord {
	n := len(s.Steps)
	out := make([]domain.StepRecord, 0, n)
	for i, steps := range s.Steps {
		out = append(out, domain.StepRecord{
			UserID:     s.Name,
			Date:       s.Date.AddDays(-(n - 1 - i)),
			Steps:      steps,
			IngestedAt: ingestedAt,
		})
	}
	return out
}

// wirePayload is the JSON object posted by the phone automation. Values stay raw so that
// absence, null, and wrong types can be told apart; keys match exactly, so "Name" is not "name".
type wirePayload map[string]json.RawMessage

// Decode parses a JSON body into a Submission. The steps field selects the shape: a JSON
// array is a backfill, anything else is a single day.
func Decode(body []byte) (Submission, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Submission{}, domain.Invalid("body", "Invalid JSON: expected an object")
	}

	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return Submission{}, domain.Invalid("body", "Invalid JSON: %v", err)
	}

	var missing []string
	for _, key := range []string{"name", "steps", "date"} {
		if isAbsent(wire[key]) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Submission{}, domain.Invalid("", "Missing required fields: %s", strings.Join(missing, ", "))
	}

	name, err := decodeString("name", wire["name"])
	if err != nil {
		return Submission{}, err
	}
	rawDate, err := decodeString("date", wire["date"])
	if err != nil {
		return Submission{}, err
	}
	date, err := domain.ParseDate(rawDate)
	if err != nil {
		return Submission{}, domain.Invalid("date", "%v", err)
	}

	sub := Submission{Name: strings.TrimSpace(name), Date: date}
	raw := bytes.TrimSpace(wire["steps"])
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Submission{}, domain.Invalid("steps", "malformed array: %v", err)
		}
		sub.Shape = ShapeBackfill
		sub.Steps = make([]int64, 0, len(items))
		for i, item := range items {
			v, err := coerceSteps(stepsField(ShapeBackfill, i), item)
			if err != nil {
				return Submission{}, err
			}
			sub.Steps = append(sub.Steps, v)
		}
	} else {
		v, err := coerceSteps("steps", raw)
		if err != nil {
			return Submission{}, err
		}
		sub.Shape = ShapeSingleDay
		sub.Steps = []int64{v}
	}

	if err := sub.Validate(); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", domain.Invalid(field, "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return "", domain.Invalid(field, "is required")
	}
	return s, nil
}

var errNotInteger = errors.New("not an integer")

// coerceSteps accepts JSON integers, JSON floats (truncated toward zero), and strings holding
// a base-10 integer.
func coerceSteps(field string, raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return 0, domain.Invalid(field, "is required")
	}

	var v int64
	var err error
	switch raw[0] {
	case '"':
		var s string
		if err = json.Unmarshal(raw, &s); err == nil {
			v, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		v, err = numberToInt(json.Number(raw))
	default:
		err = errNotInteger
	}
	if err != nil {
		return 0, domain.Invalid(field, "cannot be coerced to an integer: %s", raw)
	}
	if v < 0 || (raw[0] == '-' && v == 0 && !isZeroLiteral(raw)) {
		return 0, domain.Invalid(field, "must not be negative, got %s", raw)
	}
	return v, nil
}

func numberToInt(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, errNotInteger
	}
	return int64(math.Trunc(f)), nil
}

// isZeroLiteral reports whether a negative-signed number is a spelling of zero, such as -0 or -0.0.
func isZeroLiteral(raw json.RawMessage) bool {
	f, err := strconv.ParseFloat(string(raw), 64)
	return err == nil && f == 0
}

func stepsField(shape Shape, i int) string {
	if shape == ShapeBackfill {
		return "steps[" + strconv.Itoa(i) + "]"
	}
	return "steps"
}
