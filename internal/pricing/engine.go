package pricing

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/money"
)

// ErrEmptyItems is returned when totals are requested for no items. Totals of
// an empty set are undefined, which is not the same as a zero total.
var ErrEmptyItems = common.Validation(common.CodeEmptyItems, "no items to calculate totals for")

// LineItem identifies a priced unit by product and quantity.
type LineItem struct {
	ItemID    string `json:"itemId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// UnitPrice is the price of a single unit as decimal strings.
type UnitPrice struct {
	Net           string `json:"net"`
	Gross         string `json:"gross"`
	Vat           string `json:"vat"`
	VatPercentage int    `json:"vatPercentage"`
}

// RowTotal is a unit price multiplied by quantity.
type RowTotal struct {
	Net   string `json:"net"`
	Gross string `json:"gross"`
	Vat   string `json:"vat"`
}

// ItemTotals holds the computed prices of one line item.
type ItemTotals struct {
	ItemID    string    `json:"itemId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice UnitPrice `json:"unitPrice"`
	RowTotal  RowTotal  `json:"rowTotal"`
}

// RowTotalEntry is a row of AggregateTotals.
type RowTotalEntry struct {
	ItemID        string `json:"itemId"`
	Net           string `json:"net"`
	Gross         string `json:"gross"`
	Vat           string `json:"vat"`
	VatPercentage int    `json:"vatPercentage"`
}

// AggregateTotals sums the row totals of a cart or order.
type AggregateTotals struct {
	OwnerID   string          `json:"ownerId"`
	Net       string          `json:"net"`
	Gross     string          `json:"gross"`
	Vat       string          `json:"vat"`
	RowTotals []RowTotalEntry `json:"rowTotals"`
}

// Totals returns the net, vat and gross triple of the aggregate.
func (a AggregateTotals) Totals() Totals {
	return Totals{Net: a.Net, Vat: a.Vat, Gross: a.Gross}
}

// PriceLookup resolves the current unit price of a product.
type PriceLookup interface {
	GetUnitPrice(ctx context.Context, productID string) (UnitPrice, error)
}

// CalculateItem multiplies the unit price by the item quantity.
func CalculateItem(item LineItem, unit UnitPrice) (ItemTotals, error) {
	if item.Quantity <= 0 {
		return ItemTotals{}, invalidItem(item, fmt.Errorf("quantity %d must be positive", item.Quantity))
	}
	net, err := parseAmount(unit.Net, item.ItemID, "net")
	if err != nil {
		return ItemTotals{}, err
	}
	gross, err := parseAmount(unit.Gross, item.ItemID, "gross")
	if err != nil {
		return ItemTotals{}, err
	}
	vat, err := parseAmount(unit.Vat, item.ItemID, "vat")
	if err != nil {
		return ItemTotals{}, err
	}
	qty := int64(item.Quantity)
	return ItemTotals{
		ItemID:    item.ItemID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: unit,
		RowTotal: RowTotal{
			Net:   net.MulInt(qty).String(),
			Gross: gross.MulInt(qty).String(),
			Vat:   vat.MulInt(qty).String(),
		},
	}, nil
}

// CalculateAggregate sums the row totals of items. RowTotals keeps the input order.
func CalculateAggregate(ownerID string, items []ItemTotals) (AggregateTotals, error) {
	if len(items) == 0 {
		return AggregateTotals{}, ErrEmptyItems
	}
	net, gross, vat := money.Zero(), money.Zero(), money.Zero()
	rows := make([]RowTotalEntry, 0, len(items))
	for _, it := range items {
		rowNet, err := parseAmount(it.RowTotal.Net, it.ItemID, "row net")
		if err != nil {
			return AggregateTotals{}, err
		}
		rowGross, err := parseAmount(it.RowTotal.Gross, it.ItemID, "row gross")
		if err != nil {
			return AggregateTotals{}, err
		}
		rowVat, err := parseAmount(it.RowTotal.Vat, it.ItemID, "row vat")
		if err != nil {
			return AggregateTotals{}, err
		}
		net = net.Add(rowNet)
		gross = gross.Add(rowGross)
		vat = vat.Add(rowVat)
		rows = append(rows, RowTotalEntry{
			ItemID:        it.ItemID,
			Net:           rowNet.String(),
			Gross:         rowGross.String(),
			Vat:           rowVat.String(),
			VatPercentage: it.UnitPrice.VatPercentage,
		})
	}
	return AggregateTotals{
		OwnerID:   ownerID,
		Net:       net.String(),
		Gross:     gross.String(),
		Vat:       vat.String(),
		RowTotals: rows,
	}, nil
}

// Calculator computes cart or order totals from line items using a price lookup.
type Calculator struct {
	Prices    PriceLookup
	Checker   *Checker
	Validator *validator.Validate
}

// CalculateTotals prices every item, aggregates the rows and checks the
// aggregate for consistency. A mismatch is reported by the checker and does
// not fail the calculation.
func (c *Calculator) CalculateTotals(ctx context.Context, ownerID string, items []LineItem) (AggregateTotals, error) {
	if c == nil || c.Prices == nil {
		return AggregateTotals{}, errors.New("pricing calculator not configured")
	}
	ctx, span := otel.Tracer("pricing.Calculator").Start(ctx, "Pricing.CalculateTotals")
	defer span.End()
	span.SetAttributes(attribute.String("totals.owner_id", ownerID), attribute.Int("totals.items", len(items)))

	if len(items) == 0 {
		span.SetStatus(codes.Error, ErrEmptyItems.Code)
		return AggregateTotals{}, ErrEmptyItems
	}
	validate := c.Validator
	if validate == nil {
		validate = defaultValidator
	}

	computed := make([]ItemTotals, 0, len(items))
	for _, item := range items {
		if err := validate.Struct(item); err != nil {
			return AggregateTotals{}, invalidItem(item, err)
		}
		unit, err := c.Prices.GetUnitPrice(ctx, item.ProductID)
		if err != nil {
			span.RecordError(err)
			return AggregateTotals{}, fmt.Errorf("unit price for product %s: %w", item.ProductID, err)
		}
		row, err := CalculateItem(item, unit)
		if err != nil {
			return AggregateTotals{}, err
		}
		computed = append(computed, row)
	}

	agg, err := CalculateAggregate(ownerID, computed)
	if err != nil {
		return AggregateTotals{}, err
	}
	consistent := c.Checker.Check(ctx, ownerID, agg.Totals())
	span.SetAttributes(attribute.Bool("totals.consistent", consistent))
	return agg, nil
}

var defaultValidator = validator.New()

func parseAmount(value, itemID, field string) (money.Amount, error) {
	a, err := money.Parse(value)
	if err != nil {
		appErr := common.NewAppError(common.KindValidation, common.CodeInvalidAmount,
			fmt.Sprintf("invalid %s amount %q for item %s", field, value, itemID), err)
		return money.Amount{}, appErr
	}
	return a, nil
}

func invalidItem(item LineItem, err error) error {
	return common.NewAppError(common.KindValidation, common.CodeInvalidItem,
		fmt.Sprintf("invalid line item %s", item.ItemID), err)
}
