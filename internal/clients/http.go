// Package clients talks JSON over HTTP to the order, payment and product services.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

const maxErrorBody = 4 << 10

// base holds what every collaborator client shares.
type base struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Name    string
}

func (b base) getJSON(ctx context.Context, path, notFoundCode string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := b.HTTP.Do(ctx, req)
	return b.decode(resp, err, notFoundCode, dst)
}

// postJSON issues a single attempt. Writes are never retried.
func (b base) postJSON(ctx context.Context, path string, body any, notFoundCode string, dst any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", b.Name, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Idempotency-Key", uuid.NewString())
	resp, err := b.HTTP.DoOnce(ctx, req)
	return b.decode(resp, err, notFoundCode, dst)
}

func (b base) decode(resp *http.Response, err error, notFoundCode string, dst any) error {
	if err != nil {
		return common.Infrastructure(common.CodeUpstreamFailure, b.Name+" unavailable", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound && notFoundCode != "":
		return common.NotFound(notFoundCode, notFoundMessage(notFoundCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("%s %s: status %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		return common.Infrastructure(common.CodeUpstreamFailure, b.Name+" returned an unexpected status", cause)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return common.Infrastructure(common.CodeUpstreamFailure, b.Name+" returned an unreadable response", err)
	}
	return nil
}

// Ping probes the collaborator's health endpoint.
func (b base) Ping(ctx context.Context) error {
	return b.getJSON(ctx, "/healthz", "", nil)
}

func (b base) url(path string) string {
	return strings.TrimRight(b.BaseURL, "/") + path
}

func notFoundMessage(code string) string {
	switch code {
	case common.CodeOrderNotFound:
		return "order not found"
	case common.CodeRefundNotFound:
		return "refund not found"
	case common.CodePaymentNotFound:
		return "payment not found"
	case common.CodeProductNotFound:
		return "product not found"
	default:
		return "not found"
	}
}
