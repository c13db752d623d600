// Package poll holds the single bounded busy-wait primitive shared by every
// driver that has to wait for a hardware acknowledgement. All "blocking"
// operations in this module are loops over Until with an explicit iteration
// budget; nothing waits unbounded.
package poll

// DefaultBudget is a reasonable iteration budget for acknowledgements that
// normally latch within a few bus cycles.
const DefaultBudget = 10000

// Until polls pred up to budget times and reports whether it became true
// within the budget. pred is always called at least once for budget >= 1.
func Until(budget int, pred func() bool) bool {
	for i := 0; i < budget; i++ {
		if pred() {
			return true
		}
	}
	return false
}
