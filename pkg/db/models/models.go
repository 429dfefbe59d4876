package models

// InventoryModels lists the tables owned by the inventory service.
func InventoryModels() []any {
	return []any{&Item{}, &StockMovement{}, &StockOperation{}, &OutboxEvent{}, &OutboxDLQ{}}
}

// OrdersModels lists the tables owned by the orders service.
func OrdersModels() []any {
	return []any{&Order{}, &OrderItem{}, &OrderStatusHistory{}, &OutboxEvent{}, &OutboxDLQ{}}
}

// QCModels lists the tables owned by the QC service.
func QCModels() []any {
	return []any{&QCHandoff{}, &QCLog{}, &OutboxEvent{}, &OutboxDLQ{}}
}
