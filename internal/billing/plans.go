// AngelaMos | 2026
// plans.go

package billing

import (
	"github.com/carterperez-dev/marketplace-access/internal/access"
)

type PlanFeature struct {
	Key   string        `json:"key"`
	Label string        `json:"label"`
	Roles []access.Role `json:"roles"`
}

// Plan is one public pricing entry. Unlocks lists what this tier adds over the
// one below it; Includes lists everything available at this tier.
type Plan struct {
	Tier         access.Tier   `json:"tier"`
	Rank         int           `json:"rank"`
	Unlocks      []PlanFeature `json:"unlocks"`
	Includes     []string      `json:"includes"`
	CheckoutPath string        `json:"checkout_path"`
}

// BuildPlans derives the plan list from the feature catalog so pricing can
// never disagree with the gates.
func BuildPlans(catalog *access.Catalog) []Plan {
	tiers := access.Tiers()
	plans := make([]Plan, 0, len(tiers))
	var includes []string

	for _, t := range tiers {
		unlocked := catalog.FeaturesUnlockedAt(t)
		unlocks := make([]PlanFeature, 0, len(unlocked))
		for _, f := range unlocked {
			if offeredOnlyToAdmin(f) {
				continue
			}
			unlocks = append(unlocks, PlanFeature{
				Key:   f.Key,
				Label: f.Label,
				Roles: append([]access.Role(nil), f.Roles...),
			})
			includes = append(includes, f.Key)
		}

		plans = append(plans, Plan{
			Tier:         t,
			Rank:         t.Rank(),
			Unlocks:      unlocks,
			Includes:     append([]string(nil), includes...),
			CheckoutPath: access.UpgradePath(t),
		})
	}

	return plans
}

func offeredOnlyToAdmin(f access.Feature) bool {
	for _, r := range f.Roles {
		if r != access.RoleAdmin {
			return false
		}
	}
	return true
}
