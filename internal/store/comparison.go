package store

// Comparison is the outcome of checking a freshly computed digest against
// the baseline. It is a closed set: every caller is expected to switch
// over all three values.
type Comparison int

const (
	// Matching means the stored checksum equals the computed one.
	Matching Comparison = iota
	// Mismatch means a record exists but its checksum differs.
	Mismatch
	// Missing means the path has no baseline record.
	Missing
)

func (c Comparison) String() string {
	switch c {
	case Matching:
		return "matching"
	case Mismatch:
		return "mismatch"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}
