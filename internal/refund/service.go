package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/obs"
	"github.com/noah-isme/toko-refunds/internal/pricing"
)

// Service reconciles refund requests against an order's refund history and
// creates the refunds through the order and payment services.
//
// Requests of one batch run one after another: each one re-reads the refund
// history right before creating its refund, so a sibling's refund is always
// counted. Batches for different orders share nothing and may run in parallel.
type Service struct {
	Orders   OrderStore
	Payments PaymentStore
	// Locker, when set, holds a per-order lock around read-validate-create.
	Locker OrderLocker
	// AllowedGateways lists the payment gateways a refund payment may go through.
	AllowedGateways []string
	Checker         *pricing.Checker
	Logger          zerolog.Logger
}

// ReconcileAndCreateRefunds processes requests for orderID in order. A
// request's business-rule or upstream failure is reported in the result's
// Errors and does not stop its siblings. Only a failure to load the order
// aborts the batch with an error.
func (s *Service) ReconcileAndCreateRefunds(ctx context.Context, orderID string, requests []Request, opts Options) (BatchResult, error) {
	if s == nil || s.Orders == nil {
		return BatchResult{}, errors.New("refund service not configured")
	}
	if opts.ConfirmAndCreatePayment && s.Payments == nil {
		return BatchResult{}, errors.New("refund service: payment store not configured")
	}
	ctx, span := otel.Tracer("refund.Service").Start(ctx, "RefundService.ReconcileAndCreateRefunds")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("refund.requests", len(requests)),
		attribute.Bool("refund.confirm_and_pay", opts.ConfirmAndCreatePayment),
	)

	start := time.Now()
	outcome := "error"
	defer func() {
		if obs.RefundBatchDuration != nil {
			obs.RefundBatchDuration.WithLabelValues(outcome).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	order, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		err = upstream(err, "order service: get order")
		span.RecordError(err)
		span.SetStatus(codes.Error, "get order")
		return BatchResult{}, fmt.Errorf("get order %s: %w", orderID, err)
	}

	result := BatchResult{OrderID: orderID, Refunds: []Result{}, Errors: []StructuredError{}}
	for i, req := range requests {
		res, failure := s.process(ctx, i, order, req, opts)
		if failure != nil {
			result.Errors = append(result.Errors, *failure)
			continue
		}
		result.Refunds = append(result.Refunds, res)
	}

	outcome = "success"
	if len(result.Errors) > 0 {
		outcome = "partial"
		if len(result.Refunds) == 0 {
			outcome = "failed"
		}
	}
	span.SetAttributes(
		attribute.Int("refund.created", len(result.Refunds)),
		attribute.Int("refund.failed", len(result.Errors)),
	)
	return result, nil
}

// process drives one request through its states. The returned error value is
// nil on success.
func (s *Service) process(ctx context.Context, index int, order Order, req Request, opts Options) (Result, *StructuredError) {
	ctx, span := otel.Tracer("refund.Service").Start(ctx, "RefundService.process")
	defer span.End()
	span.SetAttributes(attribute.Int("refund.index", index))

	res := Result{Index: index, State: StateRequested}
	fail := func(err error) (Result, *StructuredError) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.State))
		return Result{}, s.failure(ctx, index, res.State, res.Refund.RefundID, err)
	}

	create := func(ctx context.Context) error {
		return s.validateAndCreate(ctx, order, req, &res)
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.LockOrder(ctx, order.OrderID, create)
		if err != nil && !common.IsAppError(err) {
			err = common.Infrastructure(common.CodeUpstreamFailure, "could not lock order for refund", err)
		}
	} else {
		err = create(ctx)
	}
	if err != nil {
		return fail(err)
	}

	if !opts.ConfirmAndCreatePayment {
		s.recordOutcome(res.State, nil)
		return res, nil
	}

	confirmed, err := s.Orders.ConfirmRefund(ctx, res.Refund.RefundID)
	if err != nil {
		return fail(upstream(err, "order service: confirm refund"))
	}
	res.Refund = confirmed
	res.State = StateConfirmed

	payment, err := s.requestPayment(ctx, order, &res)
	if err != nil {
		return fail(err)
	}
	res.Payment = &payment
	res.State = StatePaymentCreated
	s.recordOutcome(res.State, nil)
	return res, nil
}

// validateAndCreate covers Requested -> Validated -> Created. It reads the
// refund history itself so the read happens as late as possible.
func (s *Service) validateAndCreate(ctx context.Context, order Order, req Request, res *Result) error {
	history, err := s.Orders.GetRefundsByOrder(ctx, order.OrderID)
	if err != nil {
		return upstream(err, "order service: get refunds")
	}
	targets, err := Reconcile(order, history, req)
	if err != nil {
		return err
	}
	res.State = StateValidated

	items, totals, err := buildItems(order, targets)
	if err != nil {
		return err
	}
	s.Checker.Check(ctx, order.OrderID, totals.Totals())

	created, err := s.Orders.CreateRefund(ctx, Draft{
		Order:        order,
		Items:        items,
		Totals:       totals,
		RefundReason: strings.TrimSpace(req.RefundReason),
	})
	if err != nil {
		return upstream(err, "order service: create refund")
	}
	res.Refund = created.Refund
	res.Items = created.Items
	res.Totals = totals
	res.State = StateCreated
	return nil
}

// requestPayment covers Confirmed -> PaymentRequested -> PaymentCreated.
func (s *Service) requestPayment(ctx context.Context, order Order, res *Result) (RefundPayment, error) {
	paid, err := s.Payments.PaidPaymentExists(ctx, order.OrderID, order.Namespace, order.User)
	if err != nil {
		return RefundPayment{}, upstream(err, "payment service: paid payment exists")
	}
	if !paid {
		return RefundPayment{}, common.Validation(common.CodeOrderNotPaid,
			fmt.Sprintf("order %s has no paid payment to refund", order.OrderID))
	}
	payment, err := s.Payments.GetPaidPayment(ctx, order.OrderID)
	if err != nil {
		return RefundPayment{}, upstream(err, "payment service: get paid payment")
	}
	if !s.gatewayAllowed(payment.PaymentGateway) {
		return RefundPayment{}, common.Validation(common.CodeRefundGatewayNotAllowed,
			fmt.Sprintf("payment gateway %q does not support refunds", payment.PaymentGateway))
	}
	merchantID := resolveMerchantID(res.Items, order)
	if merchantID == "" {
		return RefundPayment{}, common.Validation(common.CodeMerchantIDMissing,
			fmt.Sprintf("no merchant id found for refund of order %s", order.OrderID))
	}

	res.State = StatePaymentRequested
	rp, err := s.Payments.CreateRefundPaymentFromRefund(ctx, PaymentInput{
		Order:      order,
		Payment:    payment,
		Refund:     Aggregate{Refund: res.Refund, Items: res.Items},
		Gateway:    payment.PaymentGateway,
		MerchantID: merchantID,
	})
	if err != nil {
		return RefundPayment{}, upstream(err, "payment service: create refund payment")
	}
	return rp, nil
}

func (s *Service) gatewayAllowed(gateway string) bool {
	g := strings.ToLower(strings.TrimSpace(gateway))
	if g == "" {
		return false
	}
	for _, allowed := range s.AllowedGateways {
		if strings.ToLower(strings.TrimSpace(allowed)) == g {
			return true
		}
	}
	return false
}

func (s *Service) failure(ctx context.Context, index int, stage State, refundID string, err error) *StructuredError {
	appErr := common.AsAppError(err)
	s.recordOutcome(stage, appErr)

	logger := obs.LoggerFrom(ctx, s.Logger)
	var evt *zerolog.Event
	if appErr.Kind == common.KindInfrastructure {
		evt = logger.Error().Err(err)
	} else {
		evt = logger.Warn()
	}
	evt.Int("index", index).
		Str("stage", string(stage)).
		Str("code", appErr.Code).
		Str("refund_id", refundID).
		Msg("refund_request_failed")

	return &StructuredError{
		Index:    index,
		Code:     appErr.Code,
		Kind:     appErr.Kind.String(),
		Message:  appErr.Message,
		Stage:    stage,
		RefundID: refundID,
		Details:  appErr.Details,
	}
}

func (s *Service) recordOutcome(stage State, appErr *common.AppError) {
	if obs.RefundRequestsTotal == nil {
		return
	}
	result := "success"
	if appErr != nil {
		result = appErr.Kind.String()
	}
	obs.RefundRequestsTotal.WithLabelValues(string(stage), result).Inc()
}

func buildItems(order Order, targets []Target) ([]RefundItem, pricing.AggregateTotals, error) {
	rows := make([]pricing.ItemTotals, 0, len(targets))
	items := make([]RefundItem, 0, len(targets))
	for _, t := range targets {
		oi := t.OrderItem
		row, err := pricing.CalculateItem(pricing.LineItem{
			ItemID:    oi.OrderItemID,
			ProductID: oi.ProductID,
			Quantity:  t.Quantity,
		}, oi.UnitPrice())
		if err != nil {
			return nil, pricing.AggregateTotals{}, err
		}
		rows = append(rows, row)
		items = append(items, RefundItem{
			OrderItemID:   oi.OrderItemID,
			OrderID:       order.OrderID,
			ProductID:     oi.ProductID,
			ProductName:   oi.ProductName,
			MerchantID:    oi.MerchantID,
			Quantity:      t.Quantity,
			PriceNet:      oi.PriceNet,
			PriceVat:      oi.PriceVat,
			PriceGross:    oi.PriceGross,
			RowPriceNet:   row.RowTotal.Net,
			RowPriceVat:   row.RowTotal.Vat,
			RowPriceTotal: row.RowTotal.Gross,
			VatPercentage: oi.VatPercentage,
		})
	}
	totals, err := pricing.CalculateAggregate(order.OrderID, rows)
	if err != nil {
		return nil, pricing.AggregateTotals{}, err
	}
	return items, totals, nil
}

// resolveMerchantID takes the first merchant id of the refunded items, falling
// back to the order's items.
func resolveMerchantID(items []RefundItem, order Order) string {
	for _, it := range items {
		if id := strings.TrimSpace(it.MerchantID); id != "" {
			return id
		}
	}
	for _, it := range order.Items {
		if id := strings.TrimSpace(it.MerchantID); id != "" {
			return id
		}
	}
	return ""
}

// upstream classifies an unclassified collaborator error as infrastructure.
func upstream(err error, message string) error {
	if common.IsAppError(err) {
		return err
	}
	return common.Infrastructure(common.CodeUpstreamFailure, message, err)
}
