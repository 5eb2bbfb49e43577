package uds

import (
	"encoding/hex"
	"fmt"
)

// DTC is one decoded trouble-code record from a 0x19 report.
type DTC struct {
	Code          string   // letter + 4 digits, e.g. P0301
	RawHex        string   // the 3 code bytes as 6 hex chars
	FMI           string   // third byte, failure-mode-indicator suffix
	FMIMeaning    string   // known FMI meaning, empty otherwise
	StatusByte    byte     // raw status mask
	StatusFlags   []string // decoded bit names, ["Clear"] for an empty mask
	StatusSummary string   // flags joined for display
}

var dtcLetters = [4]string{"P", "C", "B", "U"}

// Status mask bit names in ascending bit order.
var dtcStatusBits = []struct {
	mask byte
	name string
}{
	{0x01, "TestFailed"},
	{0x02, "TestFailedThisOpCycle"},
	{0x04, "Pending"},
	{0x08, "Confirmed"},
	{0x10, "NotCompletedSinceLastClear"},
	{0x20, "TestFailedSinceLastClear"},
	{0x40, "NotCompletedThisOpCycle"},
	{0x80, "WarningIndicatorRequested"},
}

// Failure-mode-indicator suffix meanings (Ford/JLR style two-digit tails).
var fmiMeanings = map[string]string{
	"00": "General failure / no sub-type",
	"11": "Circuit short to ground",
	"12": "Circuit short to battery/positive",
	"13": "Circuit open",
	"14": "Circuit short to ground or open",
	"15": "Circuit short to battery or open",
	"16": "Circuit voltage below threshold",
	"17": "Circuit voltage above threshold",
	"18": "Circuit current below threshold",
	"19": "Circuit current above threshold",
	"21": "Signal stuck low",
	"22": "Signal stuck high",
	"23": "Signal intermittent/erratic",
	"28": "Signal implausible",
	"29": "Signal invalid",
	"62": "Actuator stuck",
	"63": "Actuator stuck open",
	"64": "Actuator stuck closed",
	"71": "Mechanical failure",
	"72": "Calibration/parameter not learned",
	"73": "Performance/range issue",
	"7A": "Module not configured / software incompatible",
	"7F": "Security/component protection fault",
}

// FMIMeaning returns the known meaning for a failure-mode-indicator suffix.
func FMIMeaning(fmi string) string {
	return fmiMeanings[fmi]
}

// DecodeDTCCode unpacks the 2 leading code bytes into the letter+digits form.
func DecodeDTCCode(b1, b2 byte) string {
	letter := dtcLetters[(b1>>6)&0x3]
	digit1 := (b1 >> 4) & 0x3
	digit2 := b1 & 0xF
	digit3 := (b2 >> 4) & 0xF
	digit4 := b2 & 0xF
	return fmt.Sprintf("%s%d%X%X%X", letter, digit1, digit2, digit3, digit4)
}

// EncodeDTCCode re-derives the 2 leading bytes from a decoded code. It is the
// round-trip inverse of DecodeDTCCode and returns false for malformed codes.
func EncodeDTCCode(code string) (byte, byte, bool) {
	if len(code) != 5 {
		return 0, 0, false
	}
	letterIdx := -1
	for i, l := range dtcLetters {
		if code[0:1] == l {
			letterIdx = i
			break
		}
	}
	if letterIdx < 0 {
		return 0, 0, false
	}
	nibbles := make([]byte, 4)
	for i := 0; i < 4; i++ {
		n, ok := hexNibble(code[i+1])
		if !ok {
			return 0, 0, false
		}
		nibbles[i] = n
	}
	if nibbles[0] > 0x3 {
		return 0, 0, false
	}
	b1 := byte(letterIdx)<<6 | nibbles[0]<<4 | nibbles[1]
	b2 := nibbles[2]<<4 | nibbles[3]
	return b1, b2, true
}

// hexNibble parses one upper-case hex digit. Decoded codes are always
// upper-case, so lower-case input is rejected.
func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DecodeStatusFlags expands a status mask into bit names. An empty mask
// decodes as Clear.
func DecodeStatusFlags(status byte) []string {
	if status == 0 {
		return []string{"Clear"}
	}
	var out []string
	for _, bit := range dtcStatusBits {
		if status&bit.mask != 0 {
			out = append(out, bit.name)
		}
	}
	return out
}

// DecodeDTCGroups walks a 0x19 report payload (hex after the sub-function
// byte) and decodes each 4-byte DTC+status group. A leading
// status-availability mask byte is skipped when the first byte is >= 0x40.
// Groups that decode to P0000 noise or truncated codes are discarded.
func DecodeDTCGroups(payloadHex string) []DTC {
	raw, err := hex.DecodeString(payloadHex)
	if err != nil || len(raw) == 0 {
		return nil
	}
	if raw[0] >= 0x40 {
		raw = raw[1:]
	}
	var out []DTC
	for i := 0; i+4 <= len(raw); i += 4 {
		rec, ok := decodeDTCGroup(raw[i], raw[i+1], raw[i+2], raw[i+3])
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func decodeDTCGroup(b1, b2, b3, status byte) (DTC, bool) {
	code := DecodeDTCCode(b1, b2)
	if len(code) < 5 || code == "P0000" || code == "P00" {
		return DTC{}, false
	}
	fmi := fmt.Sprintf("%02X", b3)
	flags := DecodeStatusFlags(status)
	return DTC{
		Code:          code,
		RawHex:        fmt.Sprintf("%02X%02X%02X", b1, b2, b3),
		FMI:           fmi,
		FMIMeaning:    FMIMeaning(fmi),
		StatusByte:    status,
		StatusFlags:   flags,
		StatusSummary: joinFlags(flags),
	}, true
}

func joinFlags(flags []string) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
