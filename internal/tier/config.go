// Package tier decides how far each matched construct may be specialized.
//
// The classifier grades the evidence behind every operand of a pattern,
// proves what it can from known values and lists the rest as Needs for
// the guard synthesizer. A construct is Static when nothing remains to be
// checked, Guarded when every remaining precondition is a runtime guard,
// and Dynamic otherwise.
package tier

import (
	"fmt"

	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
)

// HintPolicy says how static type facts are used.
type HintPolicy string

const (
	// PolicyCheck turns trusted and guarded int facts into guarded
	// assumptions.
	PolicyCheck HintPolicy = "check"
	// PolicyIgnore uses literals only.
	PolicyIgnore HintPolicy = "ignore"
	// PolicyTrust additionally elides the representation guard for
	// trusted facts.
	PolicyTrust HintPolicy = "trust"
)

// ParseHintPolicy parses a policy name.
func ParseHintPolicy(s string) (HintPolicy, error) {
	switch p := HintPolicy(s); p {
	case PolicyCheck, PolicyIgnore, PolicyTrust:
		return p, nil
	}
	return "", fmt.Errorf("unknown hint policy %q", s)
}

// Config controls classification.
type Config struct {
	// Width is the target integer width in bits (32 or 64).
	Width      int
	HintPolicy HintPolicy
	// Limit caps specialization. TierGuarded lowers Static candidates with
	// their full guard set; TierDynamic disables specialization.
	Limit ir.Tier
	// Analytic enables the closed-form sum of a range.
	Analytic bool
	// Profile instruments dynamic constructs with type probes.
	Profile bool
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Width:      64,
		HintPolicy: PolicyCheck,
		Limit:      ir.TierStatic,
		Analytic:   true,
	}
}

// Validate checks a configuration.
func (c Config) Validate() error {
	if !ranges.ValidWidth(c.Width) {
		return fmt.Errorf("width %d: must be 32 or 64", c.Width)
	}
	if _, err := ParseHintPolicy(string(c.HintPolicy)); err != nil {
		return err
	}
	if c.Limit < ir.TierStatic || c.Limit > ir.TierDynamic {
		return fmt.Errorf("limit %s: unknown tier", c.Limit)
	}
	return nil
}
