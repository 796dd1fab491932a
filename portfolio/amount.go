package portfolio

import (
	"fmt"
	"math"
	"strings"
)

// Amount is a fungible token amount in scaled integer units. The exchange
// token carries eight decimal places on chain; keeping amounts as scaled
// integers avoids float drift in balance checks.
type Amount uint64

// AmountScale is the number of units per whole token.
const AmountScale = 100_000_000

const amountDecimals = 8

// ParseAmount converts the node's decimal string into scaled units.
func ParseAmount(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > amountDecimals {
		return 0, fmt.Errorf("amount %q: precision exceeds %d decimals", s, amountDecimals)
	}
	frac += strings.Repeat("0", amountDecimals-len(frac))

	var units uint64
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("amount %q: invalid digit %q", s, r)
			}
			d := uint64(r - '0')
			if units > (math.MaxUint64-d)/10 {
				return 0, fmt.Errorf("amount %q: overflow", s)
			}
			units = units*10 + d
		}
	}
	return Amount(units), nil
}

// WholeTokens builds an Amount from a whole-token count.
func WholeTokens(n uint64) Amount { return Amount(n * AmountScale) }

// String renders the amount as a decimal with trailing zeros trimmed.
func (a Amount) String() string {
	whole := uint64(a) / AmountScale
	frac := uint64(a) % AmountScale
	if frac == 0 {
		return fmt.Sprintf("%d.0", whole)
	}
	s := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, s)
}
