package tap

// passQuota bounds the number of consecutive passes one flush may run.
//
// Effects that set state schedule a follow-up pass inside the same flush.
// An effect that sets a different value on every commit would loop forever;
// the quota turns that into a PassesExceededError.
type passQuota struct {
	maxPasses int
	current   int
}

func newPassQuota(maxPasses int) *passQuota {
	return &passQuota{maxPasses: maxPasses}
}

// check increments the pass counter and validates it against the limit.
func (q *passQuota) check(resource string) error {
	q.current++
	if q.current > q.maxPasses {
		return &PassesExceededError{
			Resource: resource,
			Passes:   q.current,
			Limit:    q.maxPasses,
		}
	}
	return nil
}
