package preferences

// Origin tells where a write came from. It decides which policy checks run
// and whether the change must be persisted.
type Origin int

const (
	// UserInitiated is a direct user action on a settings surface.
	UserInitiated Origin = iota + 1
	// AutomaticAdjustment is a change proposed by the adjustment policy.
	AutomaticAdjustment
	// ExternalSync is a value that is already durable elsewhere.
	ExternalSync
)

func (o Origin) String() string {
	switch o {
	case UserInitiated:
		return "user_initiated"
	case AutomaticAdjustment:
		return "automatic_adjustment"
	case ExternalSync:
		return "external_sync"
	default:
		return "unknown"
	}
}

// Valid reports whether o is one of the declared origins.
func (o Origin) Valid() bool {
	return o >= UserInitiated && o <= ExternalSync
}

// Quiet reports whether subscribers should apply the update without re-emitting.
func (o Origin) Quiet() bool {
	return o == ExternalSync
}

// Guarded reports whether subscribers apply updates of this origin under
// their reentrancy guard.
func (o Origin) Guarded() bool {
	return o == ExternalSync || o == AutomaticAdjustment
}

// Persisted reports whether writes of this origin are scheduled for durable storage.
func (o Origin) Persisted() bool {
	return o != ExternalSync
}
