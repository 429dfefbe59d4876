package clients

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/warehouse-flow/pkg/downstream"
)

const OpGetOrder = "get_order"

// Orders is the typed client for the orders service's internal routes.
type Orders struct {
	http *downstream.Client
}

func NewOrders(client *downstream.Client) *Orders {
	return &Orders{http: client}
}

func (c *Orders) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var out Order
	err := c.http.Do(ctx, downstream.Request{
		Operation: OpGetOrder,
		Method:    http.MethodGet,
		Path:      "/api/v1/internal/orders/" + strconv.FormatInt(orderID, 10),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
