package uds

import "encoding/hex"

// DataType is the inferred encoding of a DID value.
type DataType string

const (
	DataTypeUnknown DataType = ""
	DataTypeASCII   DataType = "ascii"
	DataTypeDate    DataType = "date"
	DataTypeNumeric DataType = "numeric"
	DataTypeBinary  DataType = "binary"
)

// GuessDataType classifies a DID sample value. The heuristic runs only while
// a DID's type is still unknown; once a type sticks it is never re-derived.
func GuessDataType(valueHex string) DataType {
	raw, err := hex.DecodeString(valueHex)
	if err != nil || len(raw) == 0 {
		return DataTypeUnknown
	}
	ascii := true
	for _, b := range raw {
		if b != 0x00 && (b < 0x20 || b > 0x7E) {
			ascii = false
			break
		}
	}
	if ascii {
		return DataTypeASCII
	}
	if (len(raw) == 3 || len(raw) == 4) && allDecimalDigits(valueHex) {
		// BCD-packed date fields read as runs of decimal digits.
		return DataTypeDate
	}
	if len(raw) <= 4 {
		return DataTypeNumeric
	}
	return DataTypeBinary
}

func allDecimalDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// DecodeASCII renders a hex value as printable text for display, replacing
// NULs and non-printable bytes with dots.
func DecodeASCII(valueHex string) string {
	raw, err := hex.DecodeString(valueHex)
	if err != nil {
		return ""
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		if b >= 0x20 && b <= 0x7E {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
