// Package tier classifies borrower health factors into risk tiers. Moving a
// record between the tier tables is done by store.RouteUser.
package tier

import "fmt"

// Tier enumerates the three risk buckets a borrower can live in, plus the
// NotFound sentinel meaning "no record in any tier table yet". Dispatch on
// Tier must always be an exhaustive switch — never a string comparison.
type Tier int

const (
	NotFound Tier = iota
	Liquidatable
	AtRisk
	Healthy
)

// String renders the tier for logs, error messages and metric labels.
func (t Tier) String() string {
	switch t {
	case Liquidatable:
		return "liquidatable"
	case AtRisk:
		return "at_risk"
	case Healthy:
		return "healthy"
	case NotFound:
		return "not_found"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Of classifies a health factor into a tier given the configured at-risk
// threshold (a > 1). The boundaries are closed on the At-Risk side:
// h < 1.0 is Liquidatable, 1.0 <= h <= threshold is At-Risk, h > threshold
// is Healthy.
func Of(healthFactor, atRiskThreshold float64) Tier {
	switch {
	case healthFactor < 1.0:
		return Liquidatable
	case healthFactor <= atRiskThreshold:
		return AtRisk
	default:
		return Healthy
	}
}
