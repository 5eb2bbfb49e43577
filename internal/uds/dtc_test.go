package uds

import (
	"strings"
	"testing"
)

func TestDecodeDTCCode(t *testing.T) {
	cases := []struct {
		b1, b2 byte
		want   string
	}{
		{0x03, 0x01, "P0301"},
		{0x01, 0x71, "P0171"},
		{0x43, 0x12, "C0312"},
		{0x9A, 0x05, "B1A05"},
		{0xC1, 0x23, "U0123"},
	}
	for _, tc := range cases {
		if got := DecodeDTCCode(tc.b1, tc.b2); got != tc.want {
			t.Errorf("DecodeDTCCode(%02X, %02X) = %q, want %q", tc.b1, tc.b2, got, tc.want)
		}
	}
}

func TestDTCCodeRoundTrip(t *testing.T) {
	pairs := [][2]byte{
		{0x03, 0x01},
		{0x01, 0x71},
		{0x43, 0x12},
		{0x9A, 0x05},
		{0xC1, 0x23},
		{0x3F, 0xFF},
	}
	for _, p := range pairs {
		code := DecodeDTCCode(p[0], p[1])
		b1, b2, ok := EncodeDTCCode(code)
		if !ok || b1 != p[0] || b2 != p[1] {
			t.Errorf("round trip %02X%02X via %q gave %02X%02X ok=%v", p[0], p[1], code, b1, b2, ok)
		}
	}
	if _, _, ok := EncodeDTCCode("X0301"); ok {
		t.Error("accepted bogus letter")
	}
	if _, _, ok := EncodeDTCCode("P401"); ok {
		t.Error("accepted short code")
	}
	if _, _, ok := EncodeDTCCode("P4301"); ok {
		t.Error("accepted out-of-range first digit")
	}
	if _, _, ok := EncodeDTCCode("P030g"); ok {
		t.Error("accepted non-hex digit")
	}
	if _, _, ok := EncodeDTCCode("P030a"); ok {
		t.Error("accepted lower-case digit")
	}
}

func TestDecodeDTCGroups(t *testing.T) {
	// Leading byte >= 0x40 is an availability mask, not a code byte.
	got := DecodeDTCGroups("FF0301082E41020508")
	if len(got) != 2 {
		t.Fatalf("groups = %d, want 2", len(got))
	}
	first := got[0]
	if first.Code != "P0301" || first.FMI != "08" || first.StatusByte != 0x2E {
		t.Fatalf("first = %+v", first)
	}
	if first.RawHex != "030108" {
		t.Fatalf("raw = %q", first.RawHex)
	}
	wantFlags := []string{"TestFailedThisOpCycle", "Pending", "Confirmed", "TestFailedSinceLastClear"}
	if len(first.StatusFlags) != len(wantFlags) {
		t.Fatalf("flags = %v", first.StatusFlags)
	}
	for i, f := range wantFlags {
		if first.StatusFlags[i] != f {
			t.Fatalf("flags = %v, want %v", first.StatusFlags, wantFlags)
		}
	}
	if got[1].Code != "C0102" || got[1].StatusByte != 0x08 {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestDecodeDTCGroupsNoise(t *testing.T) {
	// All-zero groups are padding noise, not real codes.
	if got := DecodeDTCGroups("0000000103010800"); len(got) != 1 || got[0].Code != "P0301" {
		t.Fatalf("groups = %+v", got)
	}
	// A trailing partial group is discarded.
	if got := DecodeDTCGroups("030108"); len(got) != 0 {
		t.Fatalf("partial group decoded: %+v", got)
	}
	if got := DecodeDTCGroups("zz"); got != nil {
		t.Fatalf("non-hex decoded: %+v", got)
	}
	if got := DecodeDTCGroups(""); got != nil {
		t.Fatalf("empty decoded: %+v", got)
	}
}

func TestDecodeStatusFlags(t *testing.T) {
	if got := DecodeStatusFlags(0x00); len(got) != 1 || got[0] != "Clear" {
		t.Fatalf("clear mask = %v", got)
	}
	got := DecodeStatusFlags(0x81)
	if len(got) != 2 || got[0] != "TestFailed" || got[1] != "WarningIndicatorRequested" {
		t.Fatalf("mask 0x81 = %v", got)
	}
}

func TestFMIMeaning(t *testing.T) {
	if m := FMIMeaning("13"); !strings.Contains(m, "open") {
		t.Fatalf("FMI 13 = %q", m)
	}
	if m := FMIMeaning("ZZ"); m != "" {
		t.Fatalf("unknown FMI = %q", m)
	}
}
