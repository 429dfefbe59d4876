package enums

import "fmt"

// OutboxAggregateType identifies the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateItem      OutboxAggregateType = "item"
	AggregateOrder     OutboxAggregateType = "order"
	AggregateQCHandoff OutboxAggregateType = "qc_handoff"
	AggregateQCLog     OutboxAggregateType = "qc_log"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateItem,
	AggregateOrder,
	AggregateQCHandoff,
	AggregateQCLog,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the domain event name carried on every published message.
type OutboxEventType string

const (
	EventItemCreated        OutboxEventType = "item_created"
	EventStockAdjusted      OutboxEventType = "stock_adjusted"
	EventStockReserved      OutboxEventType = "stock_reserved"
	EventStockReleased      OutboxEventType = "stock_released"
	EventStockSentToQC      OutboxEventType = "stock_sent_to_qc"
	EventStockLow           OutboxEventType = "stock_low"
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventQCHandoffCreated   OutboxEventType = "qc_handoff_created"
	EventQCResultRecorded   OutboxEventType = "qc_result_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventItemCreated,
	EventStockAdjusted,
	EventStockReserved,
	EventStockReleased,
	EventStockSentToQC,
	EventStockLow,
	EventOrderCreated,
	EventOrderStatusChanged,
	EventQCHandoffCreated,
	EventQCResultRecorded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
