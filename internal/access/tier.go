// AngelaMos | 2026
// tier.go

package access

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. Tiers are totally ordered:
// free < basic < pro < enterprise.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierBasic:      1,
	TierPro:        2,
	TierEnterprise: 3,
}

var orderedTiers = []Tier{TierFree, TierBasic, TierPro, TierEnterprise}

// Tiers returns every tier from lowest to highest.
func Tiers() []Tier {
	out := make([]Tier, len(orderedTiers))
	copy(out, orderedTiers)
	return out
}

// ParseTier is the strict form used when a tier is about to be written.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown subscription tier %q", s)
	}
	return t, nil
}

// NormalizeTier is the single place stored or claimed tier strings are
// interpreted. Anything unrecognised, including the empty string, is free.
func NormalizeTier(s string) Tier {
	t, err := ParseTier(s)
	if err != nil {
		return TierFree
	}
	return t
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank of an invalid tier is the rank of free.
func (t Tier) Rank() int {
	return tierRank[NormalizeTier(string(t))]
}

func (t Tier) String() string {
	return string(t)
}

// Next returns the tier directly above t, or false at the top.
func (t Tier) Next() (Tier, bool) {
	r := t.Rank()
	if r+1 >= len(orderedTiers) {
		return "", false
	}
	return orderedTiers[r+1], true
}

func MeetsRequirement(actual, required Tier) bool {
	return actual.Rank() >= required.Rank()
}
