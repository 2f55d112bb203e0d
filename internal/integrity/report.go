package integrity

// Report aggregates the outcome of one cycle: adverse-event counters and
// the ordered findings that produced them. Findings is append-only; the
// engine never rewrites an entry once recorded.
type Report struct {
	Altered int
	New     int
	Deleted int

	// SoftFailures counts per-entity and traversal failures that did not
	// halt the cycle. They are not adverse findings by themselves.
	SoftFailures int

	Findings []Finding
}

// Clean reports whether the cycle detected no altered, new or deleted
// entities. Soft failures alone leave a report clean.
func (r *Report) Clean() bool {
	return r.Altered == 0 && r.New == 0 && r.Deleted == 0
}
