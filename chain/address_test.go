package chain

import "testing"

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0xF8D6E0586B0A20C7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr != "0xf8d6e0586b0a20c7" {
		t.Fatalf("unexpected address: %s", addr)
	}
	if !addr.Ready() {
		t.Fatalf("expected parsed address to be ready")
	}
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	cases := []string{"", "0x", "f8d6", "0xf8d6e0586b0a20c", "0xf8d6e0586b0a20c7a", "0xZ8d6e0586b0a20c7"}
	for _, raw := range cases {
		if _, err := ParseAddress(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("  0XAB12  "); got != "0xab12" {
		t.Fatalf("unexpected normalization: %s", got)
	}
	if got := NormalizeAddress(""); got != "" {
		t.Fatalf("expected empty address, got %s", got)
	}
}

func TestAddressReady(t *testing.T) {
	if Address("f8d6e0586b0a20c7").Ready() {
		t.Fatalf("unprefixed address must not be ready")
	}
	if Address("").Ready() {
		t.Fatalf("empty address must not be ready")
	}
	if Address("0x").Ready() {
		t.Fatalf("bare prefix must not be ready")
	}
}
