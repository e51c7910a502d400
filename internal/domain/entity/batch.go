package entity

// BatchError describes one failed item within a batch operation.
type BatchError struct {
	ResourceID string `json:"resource_id"`
	Reason     string `json:"reason"`
}

// BatchOutcome aggregates the per-item results of a batch transition or
// batch delete. A partial failure is reported here, not as an error:
// the operation itself succeeded at the RPC level.
type BatchOutcome struct {
	SuccessCount int          `json:"success_count"`
	Errors       []BatchError `json:"errors"`
}

// Total returns the number of items the outcome accounts for.
func (o *BatchOutcome) Total() int {
	return o.SuccessCount + len(o.Errors)
}

// Partial reports whether some, but not all, items failed.
func (o *BatchOutcome) Partial() bool {
	return len(o.Errors) > 0 && o.SuccessCount > 0
}
