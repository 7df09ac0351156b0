package enums

import "fmt"

// ReportStatus tracks a moderation report against a seller or listing.
type ReportStatus string

const (
	ReportStatusOpen        ReportStatus = "OPEN"
	ReportStatusUnderReview ReportStatus = "UNDER_REVIEW"
	ReportStatusResolved    ReportStatus = "RESOLVED"
	ReportStatusDismissed   ReportStatus = "DISMISSED"
)

var validReportStatuses = []ReportStatus{
	ReportStatusOpen,
	ReportStatusUnderReview,
	ReportStatusResolved,
	ReportStatusDismissed,
}

// String implements fmt.Stringer.
func (r ReportStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReportStatus.
func (r ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsClosed reports whether the report reached a terminal outcome.
func (r ReportStatus) IsClosed() bool {
	return r == ReportStatusResolved || r == ReportStatusDismissed
}

// ParseReportStatus converts raw input into a ReportStatus.
func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}
