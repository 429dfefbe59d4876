package enums

import "fmt"

// StockMovementType classifies rows in the stock movement ledger.
type StockMovementType string

const (
	StockMovementInbound  StockMovementType = "inbound"
	StockMovementOutbound StockMovementType = "outbound"
	StockMovementReserve  StockMovementType = "reserve"
	StockMovementRelease  StockMovementType = "release"
	StockMovementQCOut    StockMovementType = "qc_out"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementInbound,
	StockMovementOutbound,
	StockMovementReserve,
	StockMovementRelease,
	StockMovementQCOut,
}

func (t StockMovementType) String() string {
	return string(t)
}

func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}
