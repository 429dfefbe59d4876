package enums

// StockOperationType names an order-scoped inventory operation that is
// applied at most once per order.
type StockOperationType string

const (
	StockOperationReserve  StockOperationType = "reserve"
	StockOperationSendToQC StockOperationType = "send_to_qc"
	StockOperationRelease  StockOperationType = "release"
)

var validStockOperationTypes = []StockOperationType{
	StockOperationReserve,
	StockOperationSendToQC,
	StockOperationRelease,
}

func (o StockOperationType) String() string {
	return string(o)
}

func (o StockOperationType) IsValid() bool {
	for _, candidate := range validStockOperationTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// StockOperationStatus records whether the operation changed stock.
type StockOperationStatus string

const (
	StockOperationApplied StockOperationStatus = "applied"
	StockOperationNoop    StockOperationStatus = "noop"
)
