package web

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
)

var errTrailingData = errors.New("request body must contain a single JSON value")

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest float64) bool

func newComparisonValidator(valueInClosure float64, compareFn func(argValue, closedValue float64) bool) ParamValidator {
	return func(argValue float64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// gte returns a ParamValidator that checks if the argument is greater than or equal to the value captured in the closure.
func gte(valToCompareAgainst float64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue float64) bool {
		return argValue >= closedValue
	})
}

// ParseOptionalGte parses an optional float query parameter that must be >= value.
// Returns nil when the parameter is absent, and false when the response has already been written.
func ParseOptionalGte(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, value float64) (*float64, bool) {
	return parseOptional(r, w, logger, key, gte(value))
}

func parseOptional(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, pValidator ParamValidator) (*float64, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, true
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(floatValue) || math.IsInf(floatValue, 0) || !pValidator(floatValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return nil, false
	}
	return &floatValue, true
}
