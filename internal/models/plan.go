package models

// Plan is the membership tier an account activates into. Tiers are strictly
// ordered; a sponsor can only approve activations at or below its own tier.
type Plan string

const (
	PlanNone  Plan = "NONE"
	PlanTier1 Plan = "TIER_1"
	PlanTier2 Plan = "TIER_2"
	PlanTier3 Plan = "TIER_3"
)

var planRanks = map[Plan]int{
	PlanNone:  0,
	PlanTier1: 1,
	PlanTier2: 2,
	PlanTier3: 3,
}

// Rank returns the ordinal position of the plan in the tier hierarchy.
// Unknown plans rank below NONE.
func (p Plan) Rank() int {
	if r, ok := planRanks[p]; ok {
		return r
	}
	return -1
}

// Valid reports whether the plan is one of the purchasable tiers.
func (p Plan) Valid() bool {
	return p == PlanTier1 || p == PlanTier2 || p == PlanTier3
}

// CanSponsor reports whether an account holding this plan may approve an
// activation or upgrade into the requested plan.
func (p Plan) CanSponsor(requested Plan) bool {
	return requested.Valid() && p.Rank() >= requested.Rank()
}
