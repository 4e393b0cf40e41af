package refund

import (
	"context"

	"github.com/noah-isme/toko-refunds/internal/pricing"
)

// Draft is what the order service needs to persist a new draft refund.
type Draft struct {
	Order        Order                   `json:"order"`
	Items        []RefundItem            `json:"items"`
	Totals       pricing.AggregateTotals `json:"totals"`
	RefundReason string                  `json:"refundReason,omitempty"`
}

// OrderStore is the order-of-record service.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// GetRefundsByOrder must return the latest committed history; callers
	// never cache it.
	GetRefundsByOrder(ctx context.Context, orderID string) ([]Aggregate, error)
	CreateRefund(ctx context.Context, draft Draft) (Aggregate, error)
	ConfirmRefund(ctx context.Context, refundID string) (Refund, error)
}

// PaymentInput carries everything the payment service needs to refund a payment.
type PaymentInput struct {
	Order      Order     `json:"order"`
	Payment    Payment   `json:"payment"`
	Refund     Aggregate `json:"refund"`
	Gateway    string    `json:"gateway"`
	MerchantID string    `json:"merchantId"`
}

// PaymentStore is the payment service.
type PaymentStore interface {
	PaidPaymentExists(ctx context.Context, orderID, namespace, user string) (bool, error)
	GetPaidPayment(ctx context.Context, orderID string) (Payment, error)
	CreateRefundPaymentFromRefund(ctx context.Context, in PaymentInput) (RefundPayment, error)
}

// OrderLocker serialises work per order. It is optional: without it the
// quantity check is best effort and two concurrent creations for the same
// order can both pass it.
type OrderLocker interface {
	LockOrder(ctx context.Context, orderID string, fn func(context.Context) error) error
}
