// Package pricing produces the next synthetic price of the walk.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Source is the random source used by the generator. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Int63n(n int64) int64
}

// Up reports whether a step goes up, with probability upWeight/(upWeight+downWeight).
func Up(src Source, upWeight, downWeight int) bool {
	total := int64(upWeight) + int64(downWeight)
	if total <= 0 || upWeight <= 0 {
		return false
	}
	return src.Int63n(total) < int64(upWeight)
}

// Generator computes the next price. It keeps no state besides its source and
// is not safe for concurrent use when the source is not.
type Generator struct {
	src       Source
	precision int32
}

func NewGenerator(src Source, precision int32) *Generator {
	if precision < 0 {
		precision = 0
	}
	return &Generator{src: src, precision: precision}
}

// Magnitude draws a step size uniformly from [min, max].
func (g *Generator) Magnitude(bias BiasConfig) decimal.Decimal {
	span := bias.MaxMagnitude.Sub(bias.MinMagnitude)
	if !span.IsPositive() {
		return bias.MinMagnitude
	}
	frac := decimal.NewFromFloat(g.src.Float64())
	m := bias.MinMagnitude.Add(span.Mul(frac)).Round(g.precision)
	if m.GreaterThan(bias.MaxMagnitude) {
		return bias.MaxMagnitude
	}
	if m.LessThan(bias.MinMagnitude) {
		return bias.MinMagnitude
	}
	return m
}

// NextPrice applies one biased step to current and clamps the result at zero.
func (g *Generator) NextPrice(current decimal.Decimal, bias BiasConfig) decimal.Decimal {
	magnitude := g.Magnitude(bias)
	var next decimal.Decimal
	if Up(g.src, bias.UpWeight, bias.DownWeight) {
		next = current.Add(magnitude)
	} else {
		next = current.Sub(magnitude)
	}
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}
