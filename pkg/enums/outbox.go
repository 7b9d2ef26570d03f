package enums

// OutboxEventType identifies the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventOrderCreated OutboxEventType = "order.created"
	EventOrderPaid    OutboxEventType = "order.paid"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
