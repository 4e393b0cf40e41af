package clients

import (
	"context"
	"net/url"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/refund"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

// PaymentClient implements refund.PaymentStore against the payment service.
type PaymentClient struct {
	base
}

// NewPaymentClient builds a client for the payment service at baseURL.
func NewPaymentClient(baseURL string, httpClient resilience.HTTPClient) *PaymentClient {
	return &PaymentClient{base: base{BaseURL: baseURL, HTTP: httpClient, Name: "payment service"}}
}

// PaidPaymentExists reports whether the order has a paid payment.
func (c *PaymentClient) PaidPaymentExists(ctx context.Context, orderID, namespace, user string) (bool, error) {
	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("namespace", namespace)
	q.Set("user", user)
	var body struct {
		Exists bool `json:"exists"`
	}
	if err := c.getJSON(ctx, "/v1/payments/paid-exists?"+q.Encode(), "", &body); err != nil {
		return false, err
	}
	return body.Exists, nil
}

// GetPaidPayment fetches the paid payment of an order.
func (c *PaymentClient) GetPaidPayment(ctx context.Context, orderID string) (refund.Payment, error) {
	var payment refund.Payment
	err := c.getJSON(ctx, "/v1/payments/paid/"+url.PathEscape(orderID), common.CodePaymentNotFound, &payment)
	return payment, err
}

// CreateRefundPaymentFromRefund asks the payment service to refund through the gateway.
func (c *PaymentClient) CreateRefundPaymentFromRefund(ctx context.Context, in refund.PaymentInput) (refund.RefundPayment, error) {
	var rp refund.RefundPayment
	err := c.postJSON(ctx, "/v1/refund-payments", in, common.CodePaymentNotFound, &rp)
	return rp, err
}
