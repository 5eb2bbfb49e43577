// Package addr maps transport-specific addressing onto logical diagnostic
// addresses. Each supported wiring (DoIP, 29-bit and 11-bit ISO-TP CAN,
// K-Line) is one addressing scheme selected from the transport label and the
// shape of the CAN identifier, never from the payload.
package addr

import (
	"strconv"
	"strings"

	"example.com/udstrace/internal/trace"
)

// Protocol is the diagnostic protocol family spoken over a transport. The
// classification is transport-level only; it is never re-derived from service
// bytes.
type Protocol string

const (
	ProtocolUDS     Protocol = "UDS"
	ProtocolOBD     Protocol = "OBD-II"
	ProtocolKWP     Protocol = "KWP2000"
	ProtocolUnknown Protocol = "unknown"
)

// Scheme identifies the addressing rule applied to a record.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeDoIP
	SchemeCAN29Physical   // 18DAttss, tester anchored at F1
	SchemeCAN29Functional // 18DBttss, target 33 is the OBD functional id
	SchemeCAN11Paired     // 07Cx request / 07Cx+8 response pairing
	SchemeCAN11EOBD       // plain EOBD, CAN id is the ECU address
	SchemeKLine           // module name is the ECU identifier
)

func (s Scheme) String() string {
	switch s {
	case SchemeDoIP:
		return "doip"
	case SchemeCAN29Physical:
		return "can29"
	case SchemeCAN29Functional:
		return "can29-functional"
	case SchemeCAN11Paired:
		return "can11-paired"
	case SchemeCAN11EOBD:
		return "can11-eobd"
	case SchemeKLine:
		return "k-line"
	default:
		return "unknown"
	}
}

const (
	// TesterCAN29 is the fixed tester node address in 29-bit schemes.
	TesterCAN29 = "F1"
	// TesterEOBD is the pseudo-address standing in for the scan tool on
	// plain EOBD links.
	TesterEOBD = "TESTER"
	// BroadcastOBD is the pseudo-target for functional broadcasts. It is
	// counted as traffic but never becomes an ECU.
	BroadcastOBD = "OBD_BROADCAST"
	// eobdFunctionalID is the 11-bit functional request identifier.
	eobdFunctionalID = "7DF"
)

// Message is a RawRecord with resolved logical addressing. Derived once, not
// mutated afterward.
type Message struct {
	trace.RawRecord

	Scheme   Scheme
	Protocol Protocol
	Source   string
	Target   string
	// ECUAddress is the non-tester, non-broadcast logical address this
	// message involves, or empty when the record resolves to none
	// (malformed id, broadcast, metadata side channel).
	ECUAddress string
}

// Normalize resolves the logical addressing of one raw record.
func Normalize(rec trace.RawRecord) Message {
	msg := Message{RawRecord: rec, Protocol: classify(rec)}
	if rec.Kind == trace.KindMetadata {
		msg.Protocol = ProtocolUnknown
		return msg
	}
	if rec.Kind == trace.KindDoIP {
		return normalizeDoIP(msg)
	}
	if isKLine(rec) {
		return normalizeKLine(msg)
	}
	if len(rec.AddrArgs) == 0 {
		return msg
	}
	id := rec.AddrArgs[0]
	switch {
	case len(id) == 8 && strings.HasPrefix(id, "18DA"):
		return normalizeCAN29Physical(msg, id)
	case len(id) == 8 && strings.HasPrefix(id, "18DB"):
		return normalizeCAN29Functional(msg, id)
	case is11Bit(id):
		if msg.Protocol == ProtocolOBD {
			return normalizeEOBD(msg, id)
		}
		return normalizeCAN11Paired(msg, id)
	default:
		return msg
	}
}

func normalizeDoIP(msg Message) Message {
	msg.Scheme = SchemeDoIP
	if len(msg.AddrArgs) < 2 || msg.AddrArgs[0] == "" || msg.AddrArgs[1] == "" {
		return msg
	}
	msg.Source = msg.AddrArgs[0]
	msg.Target = msg.AddrArgs[1]
	// DoIP ids are already logical: the vehicle side is the target of a
	// request and the source of a response.
	if msg.Direction.IsRequest() {
		msg.ECUAddress = msg.Target
	} else {
		msg.ECUAddress = msg.Source
	}
	return msg
}

func normalizeCAN29Physical(msg Message, id string) Message {
	msg.Scheme = SchemeCAN29Physical
	target := id[4:6]
	source := id[6:8]
	msg.Source = source
	msg.Target = target
	// The id encodes direction-correct source/target, so the ECU is simply
	// the side that is not the tester anchor.
	switch {
	case source == TesterCAN29:
		msg.ECUAddress = target
	case target == TesterCAN29:
		msg.ECUAddress = source
	case msg.Direction.IsRequest():
		msg.ECUAddress = target
	default:
		msg.ECUAddress = source
	}
	return msg
}

func normalizeCAN29Functional(msg Message, id string) Message {
	msg.Scheme = SchemeCAN29Functional
	target := id[4:6]
	source := id[6:8]
	if target == "33" {
		// Functional broadcast: traffic context only, never an ECU.
		msg.Source = source
		msg.Target = BroadcastOBD
		return msg
	}
	msg.Source = source
	msg.Target = target
	switch {
	case source == TesterCAN29:
		msg.ECUAddress = target
	case target == TesterCAN29:
		msg.ECUAddress = source
	}
	return msg
}

func normalizeCAN11Paired(msg Message, id string) Message {
	msg.Scheme = SchemeCAN11Paired
	val, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return msg
	}
	// Hyundai/Kia pairing: the tester transmits on 07Cx and the ECU answers
	// on 07Cx+8.
	if msg.Direction.IsRequest() {
		ecu := strings.ToUpper(strconv.FormatUint(val+8, 16))
		ecu = leftPad(ecu, len(id))
		msg.Source = id
		msg.Target = ecu
		msg.ECUAddress = ecu
	} else {
		msg.Source = id
		// Ids below 8 have no request-side pair to subtract to.
		if val >= 8 {
			msg.Target = leftPad(strings.ToUpper(strconv.FormatUint(val-8, 16)), len(id))
		}
		msg.ECUAddress = id
	}
	return msg
}

func normalizeEOBD(msg Message, id string) Message {
	msg.Scheme = SchemeCAN11EOBD
	if msg.Direction.IsRequest() {
		msg.Source = TesterEOBD
		if strings.EqualFold(id, eobdFunctionalID) {
			msg.Target = BroadcastOBD
			return msg
		}
		msg.Target = id
		msg.ECUAddress = id
		return msg
	}
	msg.Source = id
	msg.Target = TesterEOBD
	msg.ECUAddress = id
	return msg
}

func normalizeKLine(msg Message) Message {
	msg.Scheme = SchemeKLine
	msg.Protocol = ProtocolKWP
	// No CAN id on the K-Line: the module name itself is the logical ECU.
	if msg.Module == "" {
		return msg
	}
	if msg.Direction.IsRequest() {
		msg.Source = TesterEOBD
		msg.Target = msg.Module
	} else {
		msg.Source = msg.Module
		msg.Target = TesterEOBD
	}
	msg.ECUAddress = msg.Module
	return msg
}

func classify(rec trace.RawRecord) Protocol {
	if rec.Kind == trace.KindDoIP {
		return ProtocolUDS
	}
	label := strings.ToUpper(rec.Protocol)
	switch {
	case strings.Contains(label, "EOBD"):
		return ProtocolOBD
	case strings.Contains(label, "14230") || strings.Contains(label, "KLINE") || strings.Contains(label, "K-LINE"):
		return ProtocolKWP
	case strings.Contains(label, "ISOTP") || strings.Contains(label, "ISO-TP") || label == trace.ProtocolCANID || strings.Contains(label, "CAN"):
		return ProtocolUDS
	case label == "":
		return ProtocolUnknown
	default:
		return ProtocolUnknown
	}
}

func isKLine(rec trace.RawRecord) bool {
	label := strings.ToUpper(rec.Protocol)
	if strings.Contains(label, "14230") || strings.Contains(label, "KLINE") || strings.Contains(label, "K-LINE") {
		return true
	}
	return strings.HasPrefix(strings.ToUpper(rec.Module), "K-LINE")
}

func is11Bit(id string) bool {
	if len(id) == 0 || len(id) > 4 {
		return false
	}
	val, err := strconv.ParseUint(id, 16, 32)
	if err != nil {
		return false
	}
	return val < 0x800
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
