// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strconv"
)

// Quantity is a whole-unit stock quantity.
//
// The ledger tracks discrete units only: movements carry strictly positive
// quantities and balances are signed sums of them. int64 is sufficient for
// any realistic per-tenant stock level.
type Quantity int64

func NewQuantity(v int64) Quantity { return Quantity(v) }

func (q Quantity) Int64() int64 { return int64(q) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

func (q Quantity) Add(other Quantity) Quantity { return q + other }

func (q Quantity) Sub(other Quantity) Quantity { return q - other }

// String returns the decimal representation.
func (q Quantity) String() string {
	return strconv.FormatInt(int64(q), 10)
}

// ParseQuantity parses a base-10 integer quantity.
func ParseQuantity(s string) (Quantity, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	return Quantity(v), nil
}
