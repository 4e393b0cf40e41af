package clients

import (
	"context"
	"net/url"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/pricing"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

// ProductClient implements pricing.PriceLookup against the product service.
type ProductClient struct {
	base
}

// NewProductClient builds a client for the product service at baseURL.
func NewProductClient(baseURL string, httpClient resilience.HTTPClient) *ProductClient {
	return &ProductClient{base: base{BaseURL: baseURL, HTTP: httpClient, Name: "product service"}}
}

// GetUnitPrice fetches the current unit price of a product.
func (c *ProductClient) GetUnitPrice(ctx context.Context, productID string) (pricing.UnitPrice, error) {
	var price pricing.UnitPrice
	err := c.getJSON(ctx, "/v1/products/"+url.PathEscape(productID)+"/price", common.CodeProductNotFound, &price)
	return price, err
}
