package service

// OverrideWeight is the sentinel weight for human overrides. It must stay
// strictly above any achievable methodWeight * sourceModifier product so a
// single correction outranks all automated evidence.
const OverrideWeight = 1_000_000.0

// ComputeWeight derives an assertion's frozen resolution weight from the
// inputs captured at assertion time. It must stay a pure function of its
// arguments: re-resolution replays stored assertion fields without
// consulting the source registry again.
func ComputeWeight(methodWeight, sourceModifier float64, isOverride bool) float64 {
	if isOverride {
		return OverrideWeight
	}
	return methodWeight * sourceModifier
}
