package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/surprisebag/internal/domain/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sumItems(items []LineItem) int64 {
	var sum int64
	for _, li := range items {
		sum += li.Total()
	}
	return sum
}

// ============================================
// MinorUnits
// ============================================

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"100.00", 10000},
		{"0.10", 10},
		{"19.99", 1999},
		{"0.07", 7},
		{"1234567.89", 123456789},
	}
	for _, tt := range tests {
		got, err := MinorUnits(dec(tt.amount))
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got, tt.amount)
	}
}

func TestMinorUnits_FractionalCent(t *testing.T) {
	_, err := MinorUnits(dec("0.005"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// ============================================
// lineItems
// ============================================

func TestLineItems_SingleEvenSplit(t *testing.T) {
	bag := int64(7)
	d := &order.Detail{
		Order: &order.Order{ID: 1, Type: order.TypeSingle, BagID: &bag, Quantity: 2, TotalPrice: dec("50.00")},
		Bag:   &order.BagSummary{ID: 7, Name: "Bakery bag"},
	}

	items, err := lineItems(d)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, LineItem{Name: "Bakery bag", UnitAmount: 2500, Quantity: 2}, items[0])
	assert.Equal(t, int64(5000), sumItems(items))
}

func TestLineItems_SingleUnevenSplitIsAggregated(t *testing.T) {
	bag := int64(7)
	d := &order.Detail{Order: &order.Order{ID: 1, OrderNo: "SB1", Type: order.TypeSingle, BagID: &bag, Quantity: 3, TotalPrice: dec("10.00")}}

	items, err := lineItems(d)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Quantity)
	assert.Equal(t, int64(1000), sumItems(items))
	assert.Equal(t, "SB1 x3", items[0].Name)
}

func TestLineItems_Cart(t *testing.T) {
	d := &order.Detail{Order: &order.Order{
		ID: 2, Type: order.TypeCart, Quantity: 3, TotalPrice: dec("60.00"),
		Items: []order.OrderItem{
			{BagID: 7, BagName: "Bakery", Quantity: 2, UnitPrice: dec("25.00")},
			{BagID: 8, BagName: "Veggie", Quantity: 1, UnitPrice: dec("10.00")},
		},
	}}

	items, err := lineItems(d)
	require.NoError(t, err)
	assert.Equal(t, []LineItem{
		{Name: "Bakery", UnitAmount: 2500, Quantity: 2},
		{Name: "Veggie", UnitAmount: 1000, Quantity: 1},
	}, items)
	assert.Equal(t, int64(6000), sumItems(items))
}

func TestLineItems_CartSumMismatch(t *testing.T) {
	d := &order.Detail{Order: &order.Order{
		ID: 2, Type: order.TypeCart, Quantity: 1, TotalPrice: dec("30.00"),
		Items: []order.OrderItem{{BagID: 7, BagName: "Bakery", Quantity: 1, UnitPrice: dec("25.00")}},
	}}

	_, err := lineItems(d)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLineItems_NonPositiveTotal(t *testing.T) {
	bag := int64(7)
	for _, total := range []string{"0", "-1.00"} {
		d := &order.Detail{Order: &order.Order{Type: order.TypeSingle, BagID: &bag, Quantity: 1, TotalPrice: dec(total)}}
		_, err := lineItems(d)
		assert.ErrorIs(t, err, ErrInvalidAmount, total)
	}
}
