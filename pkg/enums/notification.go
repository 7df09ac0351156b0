package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderStatus        NotificationType = "order_status"
	NotificationTypePaymentResult      NotificationType = "payment_result"
	NotificationTypeSellerOnboarding   NotificationType = "seller_onboarding"
	NotificationTypeReviewReceived     NotificationType = "review_received"
	NotificationTypeModerationAction   NotificationType = "moderation_action"
	NotificationTypeCouponExpiring     NotificationType = "coupon_expiring"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderStatus,
	NotificationTypePaymentResult,
	NotificationTypeSellerOnboarding,
	NotificationTypeReviewReceived,
	NotificationTypeModerationAction,
	NotificationTypeCouponExpiring,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
