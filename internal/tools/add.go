package tools

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"toolgate/internal/registry"
)

// ErrOverflow is returned when a result is not a finite number.
var ErrOverflow = errors.New("result is not a finite number")

// Add returns the definition of the add tool: the sum of two numbers.
func Add() registry.Definition {
	return registry.Definition{
		Name:        "add",
		Description: "Add two numbers",
		Schema: registry.Schema{Fields: []registry.Field{
			{Name: "a", Type: registry.TypeNumber, Required: true, Description: "First addend"},
			{Name: "b", Type: registry.TypeNumber, Required: true, Description: "Second addend"},
		}},
		Hints:   registry.Hints{ReadOnly: true, Idempotent: true},
		Handler: add,
	}
}

func add(_ context.Context, params registry.Params) (registry.Result, error) {
	a, _ := params.Number("a")
	b, _ := params.Number("b")

	sum := a + b
	if math.IsInf(sum, 0) || math.IsNaN(sum) {
		return registry.Result{}, ErrOverflow
	}
	return registry.Result{Text: FormatNumber(sum)}, nil
}

// FormatNumber renders n the way JavaScript's String(n) does: shortest
// round-trip digits, plain decimal for 1e-6 <= |n| < 1e21 and exponent form
// ("1e+21", "1.5e-7") outside that range. Negative zero prints as "0".
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if abs := math.Abs(n); abs >= 1e21 || abs < 1e-6 {
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(n, 'e', -1, 64), "e")
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
