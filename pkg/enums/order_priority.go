package enums

import (
	"fmt"
	"strings"
)

type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "LOW"
	OrderPriorityNormal OrderPriority = "NORMAL"
	OrderPriorityHigh   OrderPriority = "HIGH"
	OrderPriorityUrgent OrderPriority = "URGENT"
)

var validOrderPriorities = []OrderPriority{
	OrderPriorityLow,
	OrderPriorityNormal,
	OrderPriorityHigh,
	OrderPriorityUrgent,
}

func (p OrderPriority) String() string {
	return string(p)
}

func (p OrderPriority) IsValid() bool {
	for _, candidate := range validOrderPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseOrderPriority converts raw input into an OrderPriority; blank input yields NORMAL.
func ParseOrderPriority(value string) (OrderPriority, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return OrderPriorityNormal, nil
	}
	for _, candidate := range validOrderPriorities {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order priority %q", value)
}
