package enums

import "fmt"

// SubOrderStatus tracks the per-seller slice of an order. Sellers advance
// their own slice independently of the parent order.
type SubOrderStatus string

const (
	SubOrderStatusPending    SubOrderStatus = "PENDING"
	SubOrderStatusProcessing SubOrderStatus = "PROCESSING"
	SubOrderStatusShipped    SubOrderStatus = "SHIPPED"
	SubOrderStatusDelivered  SubOrderStatus = "DELIVERED"
	SubOrderStatusCancelled  SubOrderStatus = "CANCELLED"
)

var validSubOrderStatuses = []SubOrderStatus{
	SubOrderStatusPending,
	SubOrderStatusProcessing,
	SubOrderStatusShipped,
	SubOrderStatusDelivered,
	SubOrderStatusCancelled,
}

var subOrderStatusTransitions = map[SubOrderStatus][]SubOrderStatus{
	SubOrderStatusPending:    {SubOrderStatusProcessing, SubOrderStatusCancelled},
	SubOrderStatusProcessing: {SubOrderStatusShipped, SubOrderStatusCancelled},
	SubOrderStatusShipped:    {SubOrderStatusDelivered},
	SubOrderStatusDelivered:  {},
	SubOrderStatusCancelled:  {},
}

// String implements fmt.Stringer.
func (s SubOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubOrderStatus.
func (s SubOrderStatus) IsValid() bool {
	for _, candidate := range validSubOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the move to target is allowed.
func (s SubOrderStatus) CanTransitionTo(target SubOrderStatus) bool {
	for _, candidate := range subOrderStatusTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseSubOrderStatus converts raw input into a SubOrderStatus.
func ParseSubOrderStatus(value string) (SubOrderStatus, error) {
	for _, candidate := range validSubOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sub order status %q", value)
}
