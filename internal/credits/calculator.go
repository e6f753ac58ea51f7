// internal/credits/calculator.go
package credits

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrInvalidHours = errors.New("invalid hours")

// Result is the outcome of a credit computation. IsLow is advisory for the
// institute reviewer and never blocks approval.
type Result struct {
	Credits float64 `json:"credits"`
	IsLow   bool    `json:"is_low"`
}

// Compute converts worked hours to credits under policy p, rounding half-up
// to two decimal places.
func Compute(hoursWorked float64, p Policy) (Result, error) {
	if math.IsNaN(hoursWorked) || math.IsInf(hoursWorked, 0) || hoursWorked < 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidHours, hoursWorked)
	}

	rule, err := Lookup(p)
	if err != nil {
		return Result{}, err
	}

	// Division happens in decimal so that exact halves such as 10.05/30 = 0.335
	// round up instead of falling just below the boundary in binary floating point.
	credits := decimal.NewFromFloat(hoursWorked).
		Div(decimal.NewFromInt(rule.HoursPerCredit)).
		Round(2)

	return Result{
		Credits: credits.InexactFloat64(),
		IsLow:   credits.LessThan(decimal.NewFromFloat(rule.MinCreditsRequired)),
	}, nil
}
