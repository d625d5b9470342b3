package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go-ticker/internal/common"
)

// Position is the user's open trading position. It selects the bias of the walk.
type Position string

const (
	PositionNone  Position = "none"
	PositionLong  Position = "buy"
	PositionShort Position = "sell"
)

// ParsePosition accepts none/buy/sell and the long/short aliases. Empty means none.
func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PositionNone, nil
	case "buy", "long":
		return PositionLong, nil
	case "sell", "short":
		return PositionShort, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrInvalidPosition, s)
}

// BiasConfig weights the direction of the next step and bounds its magnitude.
type BiasConfig struct {
	UpWeight     int
	DownWeight   int
	MinMagnitude decimal.Decimal
	MaxMagnitude decimal.Decimal
}

func (b BiasConfig) Validate() error {
	if b.UpWeight < 0 || b.DownWeight < 0 {
		return fmt.Errorf("%w: negative weight", common.ErrInvalidBias)
	}
	if b.UpWeight+b.DownWeight == 0 {
		return fmt.Errorf("%w: weights sum to zero", common.ErrInvalidBias)
	}
	if b.MinMagnitude.IsNegative() {
		return fmt.Errorf("%w: negative magnitude", common.ErrInvalidBias)
	}
	if b.MaxMagnitude.LessThan(b.MinMagnitude) {
		return fmt.Errorf("%w: magnitude range [%s, %s] is inverted", common.ErrInvalidBias, b.MinMagnitude, b.MaxMagnitude)
	}
	return nil
}

// BiasTable maps each position to its BiasConfig.
type BiasTable struct {
	None  BiasConfig
	Long  BiasConfig
	Short BiasConfig
}

// DefaultBiasTable: balanced and wide with no position; a buy position leans
// down with smaller steps, a sell position leans up with smaller steps.
func DefaultBiasTable() BiasTable {
	return BiasTable{
		None: BiasConfig{
			UpWeight: 1, DownWeight: 1,
			MinMagnitude: decimal.NewFromInt(1), MaxMagnitude: decimal.NewFromInt(5),
		},
		Long: BiasConfig{
			UpWeight: 1, DownWeight: 3,
			MinMagnitude: decimal.RequireFromString("0.5"), MaxMagnitude: decimal.RequireFromString("2.5"),
		},
		Short: BiasConfig{
			UpWeight: 3, DownWeight: 1,
			MinMagnitude: decimal.RequireFromString("0.5"), MaxMagnitude: decimal.RequireFromString("2.5"),
		},
	}
}

func (t BiasTable) For(p Position) BiasConfig {
	switch p {
	case PositionLong:
		return t.Long
	case PositionShort:
		return t.Short
	default:
		return t.None
	}
}

func (t BiasTable) Validate() error {
	for name, b := range map[string]BiasConfig{"none": t.None, "buy": t.Long, "sell": t.Short} {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bias %s: %w", name, err)
		}
	}
	return nil
}
