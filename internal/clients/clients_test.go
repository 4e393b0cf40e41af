package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-refunds/internal/clients"
	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/refund"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

func newServer(t *testing.T, mux *http.ServeMux) (string, resilience.HTTPClient) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL, resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 3, BaseBackoff: time.Millisecond, Target: "test"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestOrderClientGetOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "o1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, refund.Order{OrderID: "o1", Items: []refund.OrderItem{{OrderItemID: "a", Quantity: 2}}})
	})
	base, hc := newServer(t, mux)
	orders := clients.NewOrderClient(base+"/", hc)

	order, err := orders.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, "o1", order.OrderID)
	require.Len(t, order.Items, 1)

	_, err = orders.GetOrder(context.Background(), "missing")
	require.True(t, common.IsKind(err, common.KindNotFound))
	require.Equal(t, common.CodeOrderNotFound, common.AsAppError(err).Code)
}

func TestOrderClientEmptyHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/orders/{id}/refunds", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	})
	base, hc := newServer(t, mux)

	history, err := clients.NewOrderClient(base, hc).GetRefundsByOrder(context.Background(), "o1")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestOrderClientCreateIsNotRetried(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	base, hc := newServer(t, mux)

	_, err := clients.NewOrderClient(base, hc).CreateRefund(context.Background(), refund.Draft{Order: refund.Order{OrderID: "o1"}})
	require.Error(t, err)
	require.True(t, common.IsKind(err, common.KindInfrastructure))
	require.Equal(t, common.CodeUpstreamFailure, common.AsAppError(err).Code)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOrderClientCreateAndConfirm(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		var draft refund.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil || r.Header.Get("Idempotency-Key") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, refund.Aggregate{
			Refund: refund.Refund{RefundID: "r1", OrderID: draft.Order.OrderID, Status: refund.StatusDraft, PriceTotal: draft.Totals.Gross},
			Items:  draft.Items,
		})
	})
	mux.HandleFunc("POST /v1/refunds/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "r1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, refund.Refund{RefundID: "r1", Status: refund.StatusConfirmed})
	})
	base, hc := newServer(t, mux)
	orders := clients.NewOrderClient(base, hc)

	draft := refund.Draft{Order: refund.Order{OrderID: "o1"}, Items: []refund.RefundItem{{OrderItemID: "a", Quantity: 1}}}
	draft.Totals.Gross = "10.00"
	created, err := orders.CreateRefund(context.Background(), draft)
	require.NoError(t, err)
	require.Equal(t, "r1", created.Refund.RefundID)
	require.Equal(t, "10.00", created.Refund.PriceTotal)
	require.Len(t, created.Items, 1)

	confirmed, err := orders.ConfirmRefund(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, refund.StatusConfirmed, confirmed.Status)

	_, err = orders.ConfirmRefund(context.Background(), "r2")
	require.Equal(t, common.CodeRefundNotFound, common.AsAppError(err).Code)
}

func TestPaymentClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/payments/paid-exists", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		exists := q.Get("orderId") == "o1" && q.Get("namespace") == "ns" && q.Get("user") == "u"
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	})
	mux.HandleFunc("GET /v1/payments/paid/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("orderId") != "o1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, refund.Payment{PaymentID: "p1", OrderID: "o1", PaymentGateway: "online-paytrail"})
	})
	mux.HandleFunc("POST /v1/refund-payments", func(w http.ResponseWriter, r *http.Request) {
		var in refund.PaymentInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.MerchantID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, refund.RefundPayment{RefundPaymentID: "rp1", RefundID: in.Refund.Refund.RefundID})
	})
	base, hc := newServer(t, mux)
	payments := clients.NewPaymentClient(base, hc)
	ctx := context.Background()

	ok, err := payments.PaidPaymentExists(ctx, "o1", "ns", "u")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = payments.PaidPaymentExists(ctx, "o1", "ns", "other")
	require.NoError(t, err)
	require.False(t, ok)

	payment, err := payments.GetPaidPayment(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "online-paytrail", payment.PaymentGateway)
	_, err = payments.GetPaidPayment(ctx, "o2")
	require.Equal(t, common.CodePaymentNotFound, common.AsAppError(err).Code)

	rp, err := payments.CreateRefundPaymentFromRefund(ctx, refund.PaymentInput{
		Refund:     refund.Aggregate{Refund: refund.Refund{RefundID: "r1"}},
		MerchantID: "m1",
	})
	require.NoError(t, err)
	require.Equal(t, "r1", rp.RefundID)

	_, err = payments.CreateRefundPaymentFromRefund(ctx, refund.PaymentInput{})
	require.True(t, common.IsKind(err, common.KindInfrastructure))
}

func TestProductClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/products/{id}/price", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "p1":
			writeJSON(w, http.StatusOK, map[string]any{"net": "10.00", "vat": "2.40", "gross": "12.40", "vatPercentage": 24})
		case "broken":
			_, _ = w.Write([]byte("{"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	base, hc := newServer(t, mux)
	products := clients.NewProductClient(base, hc)

	price, err := products.GetUnitPrice(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "12.40", price.Gross)
	require.Equal(t, 24, price.VatPercentage)

	_, err = products.GetUnitPrice(context.Background(), "p2")
	require.Equal(t, common.CodeProductNotFound, common.AsAppError(err).Code)

	_, err = products.GetUnitPrice(context.Background(), "broken")
	require.True(t, common.IsKind(err, common.KindInfrastructure))
}

func TestUnreachableCollaboratorIsInfrastructure(t *testing.T) {
	hc := resilience.HTTPClient{Client: &http.Client{}, MaxAttempts: 1}
	_, err := clients.NewOrderClient("http://127.0.0.1:1", hc).GetOrder(context.Background(), "o1")
	require.True(t, common.IsKind(err, common.KindInfrastructure))
}
