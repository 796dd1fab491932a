package chain

import (
	"fmt"
	"strings"
)

// Address identifies a ledger account. Canonical form is 0x followed by
// sixteen lower-case hex digits.
type Address string

const addressHexLen = 16

// NormalizeAddress lowercases the input and ensures the 0x prefix. An empty
// input normalizes to the empty address.
func NormalizeAddress(raw string) Address {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if cleaned == "" {
		return ""
	}
	return Address("0x" + strings.ToLower(cleaned))
}

// ParseAddress validates and normalizes a ledger address.
func ParseAddress(raw string) (Address, error) {
	addr := NormalizeAddress(raw)
	if addr == "" {
		return "", fmt.Errorf("address is empty")
	}
	hex := strings.TrimPrefix(string(addr), "0x")
	if len(hex) != addressHexLen {
		return "", fmt.Errorf("address %q: want %d hex digits, got %d", raw, addressHexLen, len(hex))
	}
	for _, r := range hex {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", fmt.Errorf("address %q: invalid hex digit %q", raw, r)
		}
	}
	return addr, nil
}

// Ready reports whether the address carries the 0x prefix and may be used in
// chain queries. Wallet sessions surface half-initialized addresses during
// login; those must never reach the node.
func (a Address) Ready() bool {
	return strings.HasPrefix(string(a), "0x") && len(a) > 2
}

func (a Address) String() string { return string(a) }
