package clients

import (
	"context"
	"net/http"

	"github.com/angelmondragon/warehouse-flow/pkg/downstream"
)

const OpListSentOrders = "list_sent_orders"

// QC is the typed client for the QC service's internal routes.
type QC struct {
	http *downstream.Client
}

func NewQC(client *downstream.Client) *QC {
	return &QC{http: client}
}

// ListSentOrderIDs returns the subset of orderIDs already handed off to QC.
func (c *QC) ListSentOrderIDs(ctx context.Context, orderIDs []int64) ([]int64, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var out SentOrdersResponse
	err := c.http.Do(ctx, downstream.Request{
		Operation: OpListSentOrders,
		Method:    http.MethodPost,
		Path:      "/api/v1/internal/qc/sent-orders",
		Body:      SentOrdersRequest{OrderIDs: orderIDs},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.OrderIDs, nil
}
