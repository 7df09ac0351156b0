package enums

import "fmt"

// AppealStatus tracks a seller appeal against a moderation action.
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "PENDING"
	AppealStatusAccepted AppealStatus = "ACCEPTED"
	AppealStatusRejected AppealStatus = "REJECTED"
)

var validAppealStatuses = []AppealStatus{
	AppealStatusPending,
	AppealStatusAccepted,
	AppealStatusRejected,
}

// String implements fmt.Stringer.
func (a AppealStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AppealStatus.
func (a AppealStatus) IsValid() bool {
	for _, candidate := range validAppealStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAppealStatus converts raw input into an AppealStatus.
func ParseAppealStatus(value string) (AppealStatus, error) {
	for _, candidate := range validAppealStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appeal status %q", value)
}
