package refund

import (
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-refunds/internal/common"
)

var requestValidator = validator.New()

// QuantityExceeded details a rejected refund quantity.
type QuantityExceeded struct {
	OrderItemID        string `json:"orderItemId"`
	Requested          int    `json:"requested"`
	PreviouslyRefunded int    `json:"previouslyRefunded"`
	OriginalQuantity   int    `json:"originalQuantity"`
}

// Target is an order item selected for refund with the quantity to refund.
type Target struct {
	OrderItem OrderItem
	Quantity  int
}

// PreviouslyRefunded sums the refunded quantity of orderItemID over history.
// Drafts count: a created refund claims its quantity until it is removed upstream.
func PreviouslyRefunded(orderItemID string, history []Aggregate) int {
	total := 0
	for _, agg := range history {
		for _, item := range agg.Items {
			if item.OrderItemID == orderItemID {
				total += item.Quantity
			}
		}
	}
	return total
}

// ReconcileItem rejects requested when, together with what history already
// refunded, it would exceed the item's original quantity.
func ReconcileItem(item OrderItem, history []Aggregate, requested int) error {
	previously := PreviouslyRefunded(item.OrderItemID, history)
	if requested+previously > item.Quantity {
		msg := fmt.Sprintf("refunded quantity (now: %d, previously: %d) cannot exceed orderItem %s quantity %d",
			requested, previously, item.OrderItemID, item.Quantity)
		return common.Validation(common.CodeRefundQuantityExceeded, msg).WithDetails(QuantityExceeded{
			OrderItemID:        item.OrderItemID,
			Requested:          requested,
			PreviouslyRefunded: previously,
			OriginalQuantity:   item.Quantity,
		})
	}
	return nil
}

// ResolveTargets maps a request onto order items. Without explicit items every
// order item is targeted with its full quantity. Repeated entries for the same
// order item are merged so they are reconciled as one quantity.
func ResolveTargets(order Order, req Request) ([]Target, error) {
	if len(req.Items) == 0 {
		targets := make([]Target, 0, len(order.Items))
		for _, item := range order.Items {
			targets = append(targets, Target{OrderItem: item, Quantity: item.Quantity})
		}
		return targets, nil
	}

	byID := make(map[string]OrderItem, len(order.Items))
	for _, item := range order.Items {
		byID[item.OrderItemID] = item
	}
	targets := make([]Target, 0, len(req.Items))
	position := make(map[string]int, len(req.Items))
	for _, ri := range req.Items {
		if err := validateRequestItem(ri); err != nil {
			return nil, err
		}
		id := strings.TrimSpace(ri.OrderItemID)
		item, ok := byID[id]
		if !ok {
			return nil, common.Validation(common.CodeOrderItemNotFound,
				fmt.Sprintf("orderItem %q does not belong to order %s", ri.OrderItemID, order.OrderID))
		}
		if idx, seen := position[id]; seen {
			targets[idx].Quantity += ri.Quantity
			continue
		}
		position[id] = len(targets)
		targets = append(targets, Target{OrderItem: item, Quantity: ri.Quantity})
	}
	return targets, nil
}

func validateRequestItem(ri RequestItem) error {
	err := requestValidator.Struct(ri)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 && fields[0].Field() == "OrderItemID" {
		return common.NewAppError(common.KindValidation, common.CodeOrderItemNotFound,
			"orderItem id is required", err)
	}
	return common.NewAppError(common.KindValidation, common.CodeInvalidRefundQuantity,
		fmt.Sprintf("refund quantity %d for orderItem %s must be positive", ri.Quantity, ri.OrderItemID), err)
}

// Reconcile resolves the request's targets and checks each of them against history.
func Reconcile(order Order, history []Aggregate, req Request) ([]Target, error) {
	targets, err := ResolveTargets(order, req)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if err := ReconcileItem(t.OrderItem, history, t.Quantity); err != nil {
			return nil, err
		}
	}
	return targets, nil
}
