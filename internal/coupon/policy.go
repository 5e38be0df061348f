// Package coupon maps promotional codes to subscription-modification
// directives. The mapping is data, not logic: new promotional codes are
// added to the policy table without touching the reconciler.
package coupon

import "time"

// Directive describes how a recognized coupon modifies the subscription.
type Directive struct {
	// TrialPeriods is the number of billing periods (months) the first
	// charge is delayed by.
	TrialPeriods int
}

// TrialEnd returns the epoch second the delayed trial ends, counted in
// whole months from now.
func (d Directive) TrialEnd(now time.Time) int64 {
	return now.AddDate(0, d.TrialPeriods, 0).Unix()
}

// Policy resolves coupon codes. Codes absent from the table pass through
// to the processor verbatim.
type Policy map[string]Directive

// DefaultPolicy returns the built-in promotional codes. Matching is exact
// and case-sensitive.
func DefaultPolicy() Policy {
	return Policy{
		"2MONTHSFREE": {TrialPeriods: 2},
		"TESTDRIVE":   {TrialPeriods: 1},
	}
}

// Resolve looks up a code. The second return is false for pass-through
// codes, including the empty code (no coupon supplied).
func (p Policy) Resolve(code string) (Directive, bool) {
	d, ok := p[code]
	return d, ok
}
