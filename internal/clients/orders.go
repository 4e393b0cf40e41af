package clients

import (
	"context"
	"net/url"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/refund"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

// OrderClient implements refund.OrderStore against the order service.
type OrderClient struct {
	base
}

// NewOrderClient builds a client for the order service at baseURL.
func NewOrderClient(baseURL string, httpClient resilience.HTTPClient) *OrderClient {
	return &OrderClient{base: base{BaseURL: baseURL, HTTP: httpClient, Name: "order service"}}
}

// GetOrder fetches an order with its items.
func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (refund.Order, error) {
	var order refund.Order
	err := c.getJSON(ctx, "/v1/orders/"+url.PathEscape(orderID), common.CodeOrderNotFound, &order)
	return order, err
}

// GetRefundsByOrder fetches every refund of an order. An order without refunds
// yields an empty history, never a not-found error.
func (c *OrderClient) GetRefundsByOrder(ctx context.Context, orderID string) ([]refund.Aggregate, error) {
	var history []refund.Aggregate
	err := c.getJSON(ctx, "/v1/orders/"+url.PathEscape(orderID)+"/refunds", common.CodeOrderNotFound, &history)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// CreateRefund persists a draft refund.
func (c *OrderClient) CreateRefund(ctx context.Context, draft refund.Draft) (refund.Aggregate, error) {
	var created refund.Aggregate
	err := c.postJSON(ctx, "/v1/refunds", draft, common.CodeOrderNotFound, &created)
	return created, err
}

// ConfirmRefund moves a draft refund to confirmed.
func (c *OrderClient) ConfirmRefund(ctx context.Context, refundID string) (refund.Refund, error) {
	var confirmed refund.Refund
	err := c.postJSON(ctx, "/v1/refunds/"+url.PathEscape(refundID)+"/confirm", nil, common.CodeRefundNotFound, &confirmed)
	return confirmed, err
}
