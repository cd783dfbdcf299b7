// Package pricing computes authoritative order totals from line subtotals,
// an optional promotion and the delivery fee policy.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

// Default delivery policy.
var (
	DefaultFreeDeliveryThreshold = decimal.RequireFromString("50.00")
	DefaultFlatDeliveryFee       = decimal.RequireFromString("3.50")
)

// Breakdown is the result of a pricing computation.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"descuento"`
	DeliveryFee decimal.Decimal `json:"envio"`
	Total       decimal.Decimal `json:"total"`
}

// NetAfterDiscount returns subtotal minus discount. It may be negative when a
// fixed discount exceeds the subtotal.
func (b Breakdown) NetAfterDiscount() decimal.Decimal {
	return b.Subtotal.Sub(b.Discount)
}

// Calculator applies the delivery fee policy. The zero value is not usable;
// construct with New or NewDefault.
type Calculator struct {
	freeDeliveryThreshold decimal.Decimal
	flatDeliveryFee       decimal.Decimal
}

// New creates a Calculator with an explicit delivery policy.
func New(freeDeliveryThreshold, flatDeliveryFee decimal.Decimal) *Calculator {
	return &Calculator{
		freeDeliveryThreshold: freeDeliveryThreshold,
		flatDeliveryFee:       flatDeliveryFee,
	}
}

// NewDefault creates a Calculator with the 50.00 / 3.50 policy.
func NewDefault() *Calculator {
	return New(DefaultFreeDeliveryThreshold, DefaultFlatDeliveryFee)
}

// FreeDeliveryThreshold returns the net amount at which delivery is free.
func (c *Calculator) FreeDeliveryThreshold() decimal.Decimal {
	return c.freeDeliveryThreshold
}

// FlatDeliveryFee returns the fee charged below the threshold.
func (c *Calculator) FlatDeliveryFee() decimal.Decimal {
	return c.flatDeliveryFee
}

// Subtotal sums line subtotals as submitted.
func Subtotal(lineSubtotals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range lineSubtotals {
		sum = sum.Add(s)
	}
	return sum
}

// Compute prices an order. promo is optional and must already have passed
// eligibility; the net amount is not clamped at zero.
func (c *Calculator) Compute(lineSubtotals []decimal.Decimal, promo *promotion.Promotion) Breakdown {
	subtotal := Subtotal(lineSubtotals)

	discount := decimal.Zero
	if promo != nil {
		discount = promotion.Discount(promo, subtotal)
	}

	net := subtotal.Sub(discount)
	fee := c.flatDeliveryFee
	if net.GreaterThanOrEqual(c.freeDeliveryThreshold) {
		fee = decimal.Zero
	}

	return Breakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		DeliveryFee: fee,
		Total:       net.Add(fee),
	}
}

// Clamp caps the discount at the subtotal so the net amount never goes
// negative, recomputing the delivery fee for the capped net.
func (c *Calculator) Clamp(b Breakdown) Breakdown {
	if !b.NetAfterDiscount().IsNegative() {
		return b
	}
	b.Discount = b.Subtotal
	b.DeliveryFee = c.flatDeliveryFee
	if decimal.Zero.GreaterThanOrEqual(c.freeDeliveryThreshold) {
		b.DeliveryFee = decimal.Zero
	}
	b.Total = b.DeliveryFee
	return b
}
