package refund

import (
	"time"

	"github.com/noah-isme/toko-refunds/internal/pricing"
)

// Status is the lifecycle state of a refund record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
)

// Customer holds the contact fields copied from an order onto its refunds.
type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrderItem is a line of an order. Unit prices are per single unit; row
// prices are for the whole Quantity.
type OrderItem struct {
	OrderItemID   string `json:"orderItemId"`
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	MerchantID    string `json:"merchantId"`
	Quantity      int    `json:"quantity"`
	PriceNet      string `json:"priceNet"`
	PriceVat      string `json:"priceVat"`
	PriceGross    string `json:"priceGross"`
	RowPriceNet   string `json:"rowPriceNet"`
	RowPriceVat   string `json:"rowPriceVat"`
	RowPriceTotal string `json:"rowPriceTotal"`
	VatPercentage int    `json:"vatPercentage"`
}

// UnitPrice returns the single-unit price of the item.
func (i OrderItem) UnitPrice() pricing.UnitPrice {
	return pricing.UnitPrice{
		Net:           i.PriceNet,
		Gross:         i.PriceGross,
		Vat:           i.PriceVat,
		VatPercentage: i.VatPercentage,
	}
}

// Order is the order of record as served by the order service.
type Order struct {
	OrderID    string      `json:"orderId"`
	Namespace  string      `json:"namespace"`
	User       string      `json:"user"`
	Status     string      `json:"status"`
	Customer   Customer    `json:"customer"`
	Items      []OrderItem `json:"items"`
	PriceNet   string      `json:"priceNet"`
	PriceVat   string      `json:"priceVat"`
	PriceTotal string      `json:"priceTotal"`
}

// Refund is a refund record owned by the order service.
type Refund struct {
	RefundID     string    `json:"refundId"`
	OrderID      string    `json:"orderId"`
	Namespace    string    `json:"namespace"`
	User         string    `json:"user"`
	Status       Status    `json:"status"`
	Customer     Customer  `json:"customer"`
	RefundReason string    `json:"refundReason,omitempty"`
	PriceNet     string    `json:"priceNet"`
	PriceVat     string    `json:"priceVat"`
	PriceTotal   string    `json:"priceTotal"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RefundItem is one refunded order item. It never changes after creation.
type RefundItem struct {
	RefundItemID  string `json:"refundItemId"`
	RefundID      string `json:"refundId"`
	OrderItemID   string `json:"orderItemId"`
	OrderID       string `json:"orderId"`
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	MerchantID    string `json:"merchantId"`
	Quantity      int    `json:"quantity"`
	PriceNet      string `json:"priceNet"`
	PriceVat      string `json:"priceVat"`
	PriceGross    string `json:"priceGross"`
	RowPriceNet   string `json:"rowPriceNet"`
	RowPriceVat   string `json:"rowPriceVat"`
	RowPriceTotal string `json:"rowPriceTotal"`
	VatPercentage int    `json:"vatPercentage"`
}

// Aggregate is a refund together with its items.
type Aggregate struct {
	Refund Refund       `json:"refund"`
	Items  []RefundItem `json:"items"`
}

// Payment is a paid payment of an order as served by the payment service.
type Payment struct {
	PaymentID      string `json:"paymentId"`
	OrderID        string `json:"orderId"`
	Namespace      string `json:"namespace"`
	User           string `json:"user"`
	Status         string `json:"status"`
	PaymentMethod  string `json:"paymentMethod"`
	PaymentGateway string `json:"paymentGateway"`
	TotalExclTax   string `json:"totalExclTax"`
	TaxAmount      string `json:"taxAmount"`
	Total          string `json:"total"`
}

// RefundPayment is the gateway refund created by the payment service.
type RefundPayment struct {
	RefundPaymentID     string `json:"refundPaymentId"`
	RefundID            string `json:"refundId"`
	OrderID             string `json:"orderId"`
	Namespace           string `json:"namespace"`
	User                string `json:"user"`
	Status              string `json:"status"`
	RefundMethod        string `json:"refundMethod"`
	RefundGateway       string `json:"refundGateway"`
	TotalExclTax        string `json:"totalExclTax"`
	TaxAmount           string `json:"taxAmount"`
	Total               string `json:"total"`
	RefundTransactionID string `json:"refundTransactionId"`
}

// Request asks to refund items of one order. A request without items refunds
// every order item with its full quantity.
type Request struct {
	RefundReason string        `json:"refundReason,omitempty"`
	Items        []RequestItem `json:"items,omitempty"`
}

// RequestItem names an order item and how many units to refund.
type RequestItem struct {
	OrderItemID string `json:"orderItemId" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

// Options tune a batch.
type Options struct {
	// ConfirmAndCreatePayment confirms each created refund and asks the
	// payment service for a gateway refund.
	ConfirmAndCreatePayment bool `json:"confirmAndCreatePayment"`
}

// State is a step of a refund request's progress.
type State string

const (
	StateRequested        State = "requested"
	StateValidated        State = "validated"
	StateCreated          State = "created"
	StateConfirmed        State = "confirmed"
	StatePaymentRequested State = "payment_requested"
	StatePaymentCreated   State = "payment_created"
)

// Result describes a request that reached its terminal success state.
type Result struct {
	Index   int                     `json:"index"`
	State   State                   `json:"state"`
	Refund  Refund                  `json:"refund"`
	Items   []RefundItem            `json:"items"`
	Totals  pricing.AggregateTotals `json:"totals"`
	Payment *RefundPayment          `json:"payment,omitempty"`
}

// StructuredError describes why one request of a batch failed. Stage is the
// last state the request reached; RefundID is set when a refund record was
// already created before the failure.
type StructuredError struct {
	Index    int    `json:"index"`
	Code     string `json:"code"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Stage    State  `json:"stage"`
	RefundID string `json:"refundId,omitempty"`
	Details  any    `json:"details,omitempty"`
}

// BatchResult collects the outcome of every request of a batch.
type BatchResult struct {
	OrderID string            `json:"orderId"`
	Refunds []Result          `json:"refunds"`
	Errors  []StructuredError `json:"errors"`
}
