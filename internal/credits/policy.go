// internal/credits/policy.go
package credits

import (
	"errors"
	"fmt"
	"strings"
)

// Policy identifies the credit-hour scheme an internship is governed by.
type Policy string

const (
	PolicyUGC   Policy = "UGC"
	PolicyAICTE Policy = "AICTE"
)

var ErrInvalidPolicy = errors.New("invalid policy")

// PolicyRule is the fixed conversion rule for a policy.
type PolicyRule struct {
	HoursPerCredit     int64   `json:"hours_per_credit"`
	MinCreditsRequired float64 `json:"min_credits_required"`
}

var policyTable = map[Policy]PolicyRule{
	PolicyUGC:   {HoursPerCredit: 30, MinCreditsRequired: 2},
	PolicyAICTE: {HoursPerCredit: 40, MinCreditsRequired: 2},
}

// Lookup returns the rule for p. The table is fixed at build time.
func Lookup(p Policy) (PolicyRule, error) {
	rule, ok := policyTable[p]
	if !ok {
		return PolicyRule{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, string(p))
	}
	return rule, nil
}

// ParsePolicy accepts any letter case and surrounding whitespace.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := Lookup(p); err != nil {
		return "", err
	}
	return p, nil
}

func (p Policy) Valid() bool {
	_, ok := policyTable[p]
	return ok
}

// Policies lists the known policies in a stable order.
func Policies() []Policy {
	return []Policy{PolicyUGC, PolicyAICTE}
}
