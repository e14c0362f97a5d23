package license

import (
	"log/slog"
	"strings"
)

// Tier is a subscription level gating feature availability.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
	TierMax  Tier = "MAX"
	TierVIP  Tier = "VIP"
)

// tierRanks orders tiers for gating comparisons.
var tierRanks = map[Tier]int{
	TierFree: 0,
	TierPro:  1,
	TierMax:  2,
	TierVIP:  3,
}

// ParseTier normalizes a tier string. Unknown values downgrade to FREE with
// a warning rather than failing, matching the recoverable-to-default policy.
func ParseTier(s string) Tier {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := tierRanks[t]; !ok {
		if s != "" {
			slog.Warn("unknown tier, defaulting to FREE", slog.String("tier", s))
		}
		return TierFree
	}
	return t
}

// Valid reports whether the tier is one of the fixed enumeration.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// AtLeast reports whether t grants at least the features of other.
func (t Tier) AtLeast(other Tier) bool {
	return tierRanks[t] >= tierRanks[other]
}
