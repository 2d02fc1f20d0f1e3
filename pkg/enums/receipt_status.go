package enums

import "fmt"

// ReceiptStatus tracks a confirmed on-chain payment through booking.
type ReceiptStatus string

const (
	ReceiptStatusBooked        ReceiptStatus = "booked"
	ReceiptStatusBookingFailed ReceiptStatus = "booking_failed"
	ReceiptStatusVerified      ReceiptStatus = "verified"
	ReceiptStatusAbandoned     ReceiptStatus = "abandoned"
)

var validReceiptStatuses = []ReceiptStatus{
	ReceiptStatusBooked,
	ReceiptStatusBookingFailed,
	ReceiptStatusVerified,
	ReceiptStatusAbandoned,
}

func (r ReceiptStatus) String() string {
	return string(r)
}

func (r ReceiptStatus) IsValid() bool {
	for _, candidate := range validReceiptStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseReceiptStatus(value string) (ReceiptStatus, error) {
	for _, candidate := range validReceiptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt status %q", value)
}
