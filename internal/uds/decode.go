package uds

import (
	"encoding/hex"
	"strings"
)

// Kind tags the semantic family a decoded payload belongs to.
type Kind int

const (
	KindGeneric Kind = iota
	KindSessionControl
	KindSecurityAccess
	KindDidRead
	KindDtcReport
	KindRoutineControl
	KindTesterPresent
	KindNegativeResponse
)

func (k Kind) String() string {
	switch k {
	case KindSessionControl:
		return "session_control"
	case KindSecurityAccess:
		return "security_access"
	case KindDidRead:
		return "did_read"
	case KindDtcReport:
		return "dtc_report"
	case KindRoutineControl:
		return "routine_control"
	case KindTesterPresent:
		return "tester_present"
	case KindNegativeResponse:
		return "negative_response"
	default:
		return "generic"
	}
}

// SessionControl is a decoded 0x10 request or 0x50 response.
type SessionControl struct {
	Type byte   // raw session sub-function
	Name string // default/programming/extended/safety
}

// SecurityAccess is a decoded 0x27 request or 0x67 response.
type SecurityAccess struct {
	Level       byte
	SeedRequest bool // odd level asks for a seed, even level sends the key
}

// DidRead is a decoded 0x22 request or 0x62 response.
type DidRead struct {
	DID      string // 4 upper-case hex chars
	ValueHex string // response payload after the DID, empty on requests
}

// DtcReport is a decoded 0x19 request or 0x59 response.
type DtcReport struct {
	SubFunction byte
	CountOnly   bool  // sub-functions 0x01/0x07 report a count, no records
	DTCs        []DTC // expanded records, responses only
}

// RoutineControl is a decoded 0x31 request or 0x71 response.
type RoutineControl struct {
	ControlType byte
	ControlName string // start/stop/requestResults/unknown
	RoutineID   string // 4 upper-case hex chars
	InputHex    string // request tail
	OutputHex   string // response tail
	StatusHex   string // first 2 bytes of the response tail when present
}

// TesterPresent is a decoded 0x3E request.
type TesterPresent struct {
	SuppressResponse bool
}

// NegativeResponse is a decoded 0x7F payload.
type NegativeResponse struct {
	RequestedService byte
	NRC              byte
	NRCName          string
}

// Decoded is the result of decoding one service payload. ServiceID is the
// effective request-side id; exactly one of the optional fields is populated
// for recognized kinds.
type Decoded struct {
	ServiceID    byte // effective (response ids folded back by 0x40)
	RawServiceID byte // byte as seen on the wire
	IsResponse   bool // positive response
	Kind         Kind

	Session  *SessionControl
	Security *SecurityAccess
	Did      *DidRead
	Dtc      *DtcReport
	Routine  *RoutineControl
	Tester   *TesterPresent
	Negative *NegativeResponse
}

// decodeFunc fills the service-specific part of a Decoded record. payload is
// the full upper-case hex string including the service id at [0:2].
type decodeFunc func(d *Decoded, payload string)

// serviceTable maps request service ids to their decode rule. Services absent
// from the table (the write/programming family among them) decode as Generic
// and are tracked as capability flags only.
var serviceTable = map[byte]decodeFunc{
	ServiceDiagnosticSessionControl: decodeSessionControl,
	ServiceSecurityAccess:           decodeSecurityAccess,
	ServiceReadDataByIdentifier:     decodeDidRead,
	ServiceReadDTCInformation:       decodeDtcReport,
	ServiceRoutineControl:           decodeRoutineControl,
	ServiceTesterPresent:            decodeTesterPresent,
}

var sessionNames = map[byte]string{
	0x01: "default",
	0x02: "programming",
	0x03: "extended",
	0x04: "safety",
}

// SessionName returns the label for a diagnostic session sub-function.
func SessionName(session byte) string {
	if name, ok := sessionNames[session&0x7F]; ok {
		return name
	}
	return "unknown"
}

var routineControlNames = map[byte]string{
	0x01: "start",
	0x02: "stop",
	0x03: "requestResults",
}

// Decode interprets one service payload. The payload is the full message hex
// beginning with the service id byte; response marks the vehicle-to-tester
// side of the exchange. The positive-response fold applies only there, so a
// request id at or above 0x40 (ControlDTCSetting and the rest of the 0x8x
// family) keeps its own value. Fields whose bytes are missing are left unset
// rather than filled with partial data.
func Decode(payloadHex string, response bool) Decoded {
	payload := strings.ToUpper(strings.TrimSpace(payloadHex))
	var d Decoded
	if len(payload) < 2 {
		return d
	}
	raw, err := hexByte(payload[0:2])
	if err != nil {
		return d
	}
	d.RawServiceID = raw
	d.ServiceID = raw
	if response {
		d.IsResponse = IsPositiveResponse(raw)
		d.ServiceID = EffectiveServiceID(raw)
	}

	if raw == ServiceNegativeResponse {
		d.Kind = KindNegativeResponse
		neg := &NegativeResponse{}
		if len(payload) >= 4 {
			if sid, err := hexByte(payload[2:4]); err == nil {
				neg.RequestedService = sid
			}
		}
		if len(payload) >= 6 {
			if nrc, err := hexByte(payload[4:6]); err == nil {
				neg.NRC = nrc
				neg.NRCName = NRCName(nrc)
			}
		}
		d.Negative = neg
		return d
	}

	if fn, ok := serviceTable[d.ServiceID]; ok {
		fn(&d, payload)
	}
	return d
}

func decodeSessionControl(d *Decoded, payload string) {
	d.Kind = KindSessionControl
	sc := &SessionControl{}
	if len(payload) >= 4 {
		if b, err := hexByte(payload[2:4]); err == nil {
			sc.Type = b
			sc.Name = SessionName(b)
		}
	}
	d.Session = sc
}

func decodeSecurityAccess(d *Decoded, payload string) {
	d.Kind = KindSecurityAccess
	sa := &SecurityAccess{}
	if len(payload) >= 4 {
		if b, err := hexByte(payload[2:4]); err == nil {
			sa.Level = b
			sa.SeedRequest = b%2 == 1
		}
	}
	d.Security = sa
}

func decodeDidRead(d *Decoded, payload string) {
	d.Kind = KindDidRead
	dr := &DidRead{}
	if len(payload) >= 6 {
		dr.DID = payload[2:6]
	}
	if d.IsResponse && len(payload) > 6 {
		dr.ValueHex = payload[6:]
	}
	d.Did = dr
}

func decodeDtcReport(d *Decoded, payload string) {
	d.Kind = KindDtcReport
	rep := &DtcReport{}
	if len(payload) >= 4 {
		if b, err := hexByte(payload[2:4]); err == nil {
			rep.SubFunction = b
		}
	}
	switch rep.SubFunction {
	case 0x01, 0x07:
		rep.CountOnly = true
	case 0x02, 0x0A, 0x04, 0x06, 0x0F, 0x14, 0x15:
		if d.IsResponse && len(payload) > 4 {
			rep.DTCs = DecodeDTCGroups(payload[4:])
		}
	}
	d.Dtc = rep
}

func decodeRoutineControl(d *Decoded, payload string) {
	d.Kind = KindRoutineControl
	rc := &RoutineControl{ControlName: "unknown"}
	if len(payload) >= 4 {
		if b, err := hexByte(payload[2:4]); err == nil {
			rc.ControlType = b
			if name, ok := routineControlNames[b]; ok {
				rc.ControlName = name
			}
		}
	}
	if len(payload) >= 8 {
		rc.RoutineID = payload[4:8]
	}
	if len(payload) > 8 {
		tail := payload[8:]
		if d.IsResponse {
			rc.OutputHex = tail
			if len(tail) >= 4 {
				rc.StatusHex = tail[0:4]
			}
		} else {
			rc.InputHex = tail
		}
	}
	d.Routine = rc
}

func decodeTesterPresent(d *Decoded, payload string) {
	d.Kind = KindTesterPresent
	tp := &TesterPresent{}
	if len(payload) >= 4 {
		tp.SuppressResponse = payload[2:4] == "80"
	}
	d.Tester = tp
}

func hexByte(s string) (byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 1 {
		if err == nil {
			err = hex.ErrLength
		}
		return 0, err
	}
	return b[0], nil
}
