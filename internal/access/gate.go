// AngelaMos | 2026
// gate.go

package access

import (
	"fmt"
	"net/url"
)

type Outcome string

const (
	OutcomeAllowed     Outcome = "allowed"
	OutcomeLocked      Outcome = "locked"
	OutcomeUnavailable Outcome = "unavailable"
)

type UpgradePrompt struct {
	RequiredTier Tier   `json:"required_tier"`
	Message      string `json:"message"`
	CTAPath      string `json:"cta_path"`
}

type Decision struct {
	Feature      string         `json:"feature"`
	Outcome      Outcome        `json:"outcome"`
	RequiredTier Tier           `json:"required_tier"`
	CurrentTier  Tier           `json:"current_tier"`
	Upgrade      *UpgradePrompt `json:"upgrade,omitempty"`
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// Evaluate is the feature gate. Admins are never locked; otherwise the
// feature must be offered to the role and the tier must meet the requirement.
// This is the presentation decision only; API handlers enforce the same call
// through middleware.
func Evaluate(s Session, f Feature) Decision {
	d := Decision{
		Feature:      f.Key,
		RequiredTier: f.RequiredTier,
		CurrentTier:  s.Tier,
	}

	switch {
	case s.Admin():
		d.Outcome = OutcomeAllowed
	case !f.OfferedTo(s.Role):
		d.Outcome = OutcomeUnavailable
	case MeetsRequirement(s.Tier, f.RequiredTier):
		d.Outcome = OutcomeAllowed
	default:
		d.Outcome = OutcomeLocked
		d.Upgrade = NewUpgradePrompt(f)
	}

	return d
}

func NewUpgradePrompt(f Feature) *UpgradePrompt {
	label := f.Label
	if label == "" {
		label = f.Key
	}
	return &UpgradePrompt{
		RequiredTier: f.RequiredTier,
		Message: fmt.Sprintf(
			"%s is available on the %s plan and above", label, f.RequiredTier),
		CTAPath: UpgradePath(f.RequiredTier),
	}
}

func UpgradePath(t Tier) string {
	return PricingPath + "?" + url.Values{"plan": {string(t)}}.Encode()
}
