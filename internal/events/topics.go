package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated    = "order.created"
	TopicOrderSettled    = "order.settled"
	TopicOrderCanceled   = "order.canceled"
	TopicVoucherDepleted = "voucher.depleted"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderSettled,
		TopicOrderCanceled,
		TopicVoucherDepleted,
	}
}
