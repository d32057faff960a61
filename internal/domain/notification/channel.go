package notification

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// Channel is the transport the delivery collaborator uses for a descriptor.
type Channel string

const (
	ChannelEmail Channel = "email"
)

// IsValid reports whether the channel is supported.
func (c Channel) IsValid() bool {
	return c == ChannelEmail
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY STATUS
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryStatus is the lifecycle of a queued descriptor.
type DeliveryStatus string

const (
	// DeliveryQueued - waiting for the delivery collaborator.
	DeliveryQueued DeliveryStatus = "queued"
	// DeliverySending - claimed by a delivery worker.
	DeliverySending DeliveryStatus = "sending"
	// DeliverySent - delivered and recorded in history.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed - gave up after the maximum number of attempts.
	DeliveryFailed DeliveryStatus = "failed"
	// DeliveryCancelled - withdrawn before delivery.
	DeliveryCancelled DeliveryStatus = "cancelled"
)

// IsValid reports whether the status is known.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryQueued, DeliverySending, DeliverySent, DeliveryFailed, DeliveryCancelled:
		return true
	default:
		return false
	}
}

// IsFinal reports whether no further transition is possible.
func (s DeliveryStatus) IsFinal() bool {
	switch s {
	case DeliverySent, DeliveryFailed, DeliveryCancelled:
		return true
	default:
		return false
	}
}

// CanRetry reports whether the message may be claimed again.
func (s DeliveryStatus) CanRetry() bool {
	return s == DeliveryQueued || s == DeliverySending
}

// String returns the status.
func (s DeliveryStatus) String() string {
	return string(s)
}
