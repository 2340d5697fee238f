package message

// DeliveryState tracks an outgoing message from optimistic append to backend confirmation.
type DeliveryState string

const (
	// DeliveryConfirmed is the state of every record translated from a backend document.
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryPending   DeliveryState = "pending"
	DeliveryFailed    DeliveryState = "failed"
)

// Outstanding reports whether the record only exists locally.
func (s DeliveryState) Outstanding() bool {
	return s == DeliveryPending || s == DeliveryFailed
}
