// Package discover reverse-engineers the ECU landscape of a diagnostic trace:
// which modules answered, which services, data identifiers, trouble codes and
// routines they exposed, and how the tester sequenced its procedures. All
// state lives inside one Analyze call; nothing survives between parses.
package discover

import (
	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/uds"
)

// didSampleCap bounds the per-DID sample ring.
const didSampleCap = 10

// DIDRecord accumulates observations of one data identifier on one ECU.
type DIDRecord struct {
	ID         string
	Name       string
	DataLength int      // max observed value length in bytes, monotonic
	Samples    []string // bounded ring of hex values, newest last
	DataType   uds.DataType
}

// DTCRecord is one deduplicated trouble code on one ECU. The first
// observation creates the record; later ones only refresh the status.
type DTCRecord struct {
	Code        string
	RawHex      string
	FMI         string
	FMIMeaning  string
	StatusByte  byte
	StatusFlags []string
}

// RoutineRecord accumulates control activity for one routine id.
type RoutineRecord struct {
	ID            string
	ControlType   string // latest observed: start/stop/requestResults/unknown
	InputHex      string
	Outputs       []string
	StatusHistory []string
}

// ECU is the discovery record for one logical address. Tester and broadcast
// pseudo-addresses never get one.
type ECU struct {
	Address        string
	Name           string
	OEM            string
	Protocol       addr.Protocol
	Services       map[byte]struct{}
	DIDs           map[string]*DIDRecord
	DTCs           map[string]*DTCRecord
	Routines       map[string]*RoutineRecord
	SessionTypes   map[byte]struct{}
	SecurityLevels map[byte]struct{}
	MessageCount   int
	FirstSeen      string
	LastSeen       string
	FirstOffsetUs  int64
	LastOffsetUs   int64

	didOrder     []string
	routineOrder []string
	dtcOrder     []string
}

// ProcedureMessage is the per-message digest kept on a procedure.
type ProcedureMessage struct {
	Line      int    `json:"line"`
	Timestamp string `json:"timestamp"`
	Request   bool   `json:"request"`
	Service   string `json:"service,omitempty"`
	DataHex   string `json:"data,omitempty"`
}

// Procedure is one contiguous diagnostic procedure keyed by the top-level
// request service that opened it.
type Procedure struct {
	ID         int
	ECUAddress string
	Type       string
	StartTime  string
	EndTime    string
	Status     string // started while open, completed once closed
	Messages   []ProcedureMessage
}

// Procedure status values.
const (
	ProcedureStarted   = "started"
	ProcedureCompleted = "completed"
)

// procedureTypes maps opening request services to procedure types.
var procedureTypes = map[byte]string{
	uds.ServiceDiagnosticSessionControl: "session_control",
	uds.ServiceSecurityAccess:           "security_access",
	uds.ServiceReadDataByIdentifier:     "data_reading",
	uds.ServiceReadDTCInformation:       "dtc_management",
	uds.ServiceRoutineControl:           "routine_control",
	uds.ServiceTesterPresent:            "tester_present",
}
