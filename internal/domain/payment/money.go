package payment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/surprisebag/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a fixed-point amount to integer cents. Amounts with a
// fraction of a cent are rejected rather than rounded.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %s has fractional cents", ErrInvalidAmount, amount)
	}
	return cents.IntPart(), nil
}

// LineItem is one priced row of a hosted checkout page.
type LineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

// Total returns UnitAmount × Quantity.
func (l LineItem) Total() int64 { return l.UnitAmount * l.Quantity }

// lineItems prices an order for the gateway. The sum of the returned items
// always equals the order total in minor units.
func lineItems(d *order.Detail) ([]LineItem, error) {
	total, err := MinorUnits(d.TotalPrice)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: order total must be positive", ErrInvalidAmount)
	}

	if d.Type == order.TypeCart {
		items := make([]LineItem, 0, len(d.Items))
		var sum int64
		for _, it := range d.Items {
			unit, err := MinorUnits(it.UnitPrice)
			if err != nil {
				return nil, err
			}
			li := LineItem{Name: it.BagName, UnitAmount: unit, Quantity: int64(it.Quantity)}
			sum += li.Total()
			items = append(items, li)
		}
		if sum != total {
			return nil, fmt.Errorf("%w: items sum to %d, order total is %d", ErrInvalidAmount, sum, total)
		}
		return items, nil
	}

	name := d.OrderNo
	if d.Bag != nil && d.Bag.Name != "" {
		name = d.Bag.Name
	}
	qty := int64(d.Quantity)
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidAmount)
	}
	// An uneven split is billed as a single aggregated row.
	if total%qty != 0 {
		return []LineItem{{Name: fmt.Sprintf("%s x%d", name, qty), UnitAmount: total, Quantity: 1}}, nil
	}
	return []LineItem{{Name: name, UnitAmount: total / qty, Quantity: qty}}, nil
}
