package integrity

import (
	"fmt"
	"time"
)

// Kind classifies a finding.
type Kind string

const (
	// KindAltered is a checksum mismatch against the baseline.
	KindAltered Kind = "altered"
	// KindNew is a file present on disk with no baseline record.
	KindNew Kind = "new"
	// KindDeleted is a baseline record whose file was never visited.
	KindDeleted Kind = "deleted"
	// KindDenied is a permission-denied read in insecure mode.
	KindDenied Kind = "permission-denied"
	// KindScanError is any other per-entity or traversal failure.
	KindScanError Kind = "scan-error"
)

// Severity grades a finding for operators and log processors.
type Severity string

const (
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
	SeverityInfo  Severity = "INFO"
)

// Finding is one reported integrity event.
type Finding struct {
	Time     time.Time
	Severity Severity
	Kind     Kind
	Path     string
	Detail   string
}

// String renders the finding as the one-line sink format.
func (f Finding) String() string {
	s := fmt.Sprintf("%s %s %s %s", f.Time.UTC().Format(time.RFC3339), f.Severity, f.Kind, f.Path)
	if f.Detail != "" {
		s += ": " + f.Detail
	}
	return s
}
