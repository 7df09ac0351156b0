package enums

import "fmt"

// ProductStatus controls listing visibility in the catalog.
type ProductStatus string

const (
	ProductStatusActive    ProductStatus = "ACTIVE"
	ProductStatusInactive  ProductStatus = "INACTIVE"
	ProductStatusSuspended ProductStatus = "SUSPENDED"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusSuspended,
}

// String implements fmt.Stringer.
func (p ProductStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductStatus.
func (p ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Purchasable reports whether the listing can be added to carts.
func (p ProductStatus) Purchasable() bool {
	return p == ProductStatusActive
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
