// Package prorata splits a target amount across budget lines proportionally to their base amount.
package prorata

import (
	"github.com/shopspring/decimal"

	"github.com/cgbcreil/gestio/core/money"
)

// Line is one line to allocate to. Negative or missing bases count as given; only the total base must be positive.
type Line struct {
	ID   int
	Base float64
}

type Share struct {
	ID     int     `json:"id"`
	Amount float64 `json:"amount"`
}

// Allocation keeps the caller's line order.
type Allocation []Share

func (a Allocation) Map() map[int]float64 {
	m := make(map[int]float64, len(a))
	for _, s := range a {
		m[s.ID] = s.Amount
	}
	return m
}

// Total returns the sum of the shares, in cents.
func (a Allocation) Total() float64 {
	total := decimal.Zero
	for _, s := range a {
		total = total.Add(money.Dec(s.Amount))
	}
	return money.Float(total)
}

// Allocate splits `target` across `lines` pro rata of their base.
// Every line but the last gets round(base*ratio, 2); the last one gets what is left of round(target, 2),
// so the shares always add up to the target to the cent.
// When the total base is not positive every line gets 0.
func Allocate(lines []Line, target float64) Allocation {
	out := make(Allocation, 0, len(lines))
	if len(lines) == 0 {
		return out
	}

	totalBase := decimal.Zero
	for _, l := range lines {
		totalBase = totalBase.Add(money.Dec(l.Base))
	}
	if !totalBase.IsPositive() {
		for _, l := range lines {
			out = append(out, Share{ID: l.ID})
		}
		return out
	}

	tgt := money.Dec(target)
	cumul := decimal.Zero
	for i, l := range lines {
		var part decimal.Decimal
		if i == len(lines)-1 {
			part = tgt.Sub(cumul).Round(money.Places)
		} else {
			part = money.Dec(l.Base).Mul(tgt).DivRound(totalBase, 16).Round(money.Places)
		}
		out = append(out, Share{ID: l.ID, Amount: part.InexactFloat64()})
		cumul = cumul.Add(part)
	}
	return out
}
