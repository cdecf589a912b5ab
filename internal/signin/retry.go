package signin

// RetryPolicy bounds the regenerate-and-retry cycle taken when the registry
// rejects a delegation signature as invalid. Expressed as data so the bound
// is testable on its own.
type RetryPolicy struct {
	MaxRegenerations int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRegenerations: 1}
}

// Allows reports whether another regeneration may happen after `used`
// regenerations have already been spent.
func (p RetryPolicy) Allows(used int) bool {
	return used < p.MaxRegenerations
}
