package discover

import (
	"fmt"

	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/dict"
	"example.com/udstrace/internal/uds"
)

// tracker owns the per-address discovery records for one parse.
type tracker struct {
	ecus  map[string]*ECU
	order []string
	kb    *dict.Store
}

func newTracker(kb *dict.Store) *tracker {
	return &tracker{ecus: make(map[string]*ECU), kb: kb}
}

func (t *tracker) lookup(msg addr.Message) *ECU {
	ecu, ok := t.ecus[msg.ECUAddress]
	if ok {
		return ecu
	}
	ecu = &ECU{
		Address:        msg.ECUAddress,
		Name:           fmt.Sprintf("ECU_%s", msg.ECUAddress),
		Protocol:       msg.Protocol,
		Services:       make(map[byte]struct{}),
		DIDs:           make(map[string]*DIDRecord),
		DTCs:           make(map[string]*DTCRecord),
		Routines:       make(map[string]*RoutineRecord),
		SessionTypes:   make(map[byte]struct{}),
		SecurityLevels: make(map[byte]struct{}),
		FirstSeen:      msg.Timestamp,
		FirstOffsetUs:  msg.OffsetUs,
	}
	if entry, ok := t.kb.Lookup(msg.ECUAddress); ok {
		ecu.Name = entry.Name
		ecu.OEM = entry.OEM
	}
	t.ecus[msg.ECUAddress] = ecu
	t.order = append(t.order, msg.ECUAddress)
	return ecu
}

// apply merges one normalized, decoded message into its ECU record. Callers
// guarantee a non-empty physical ECU address.
func (t *tracker) apply(msg addr.Message, dec uds.Decoded) {
	ecu := t.lookup(msg)
	ecu.MessageCount++
	ecu.LastSeen = msg.Timestamp
	ecu.LastOffsetUs = msg.OffsetUs
	if ecu.Protocol == addr.ProtocolUnknown && msg.Protocol != addr.ProtocolUnknown {
		ecu.Protocol = msg.Protocol
	}

	if len(msg.DataHex) < 2 {
		return
	}
	if dec.RawServiceID != uds.ServiceNegativeResponse {
		ecu.Services[dec.ServiceID] = struct{}{}
	}

	switch dec.Kind {
	case uds.KindSessionControl:
		if dec.Session != nil && dec.Session.Name != "" {
			ecu.SessionTypes[dec.Session.Type&0x7F] = struct{}{}
		}
	case uds.KindSecurityAccess:
		if dec.Security != nil && dec.Security.Level != 0 {
			ecu.SecurityLevels[dec.Security.Level] = struct{}{}
		}
	case uds.KindDidRead:
		t.applyDid(ecu, dec)
	case uds.KindDtcReport:
		t.applyDtc(ecu, dec)
	case uds.KindRoutineControl:
		t.applyRoutine(ecu, dec)
	}
}

func (t *tracker) applyDid(ecu *ECU, dec uds.Decoded) {
	if dec.Did == nil || dec.Did.DID == "" {
		return
	}
	rec, ok := ecu.DIDs[dec.Did.DID]
	if !ok {
		// A request with no matching response still registers the id.
		rec = &DIDRecord{ID: dec.Did.DID}
		ecu.DIDs[dec.Did.DID] = rec
		ecu.didOrder = append(ecu.didOrder, dec.Did.DID)
	}
	if !dec.IsResponse || dec.Did.ValueHex == "" {
		return
	}
	byteLen := len(dec.Did.ValueHex) / 2
	if byteLen > rec.DataLength {
		rec.DataLength = byteLen
	}
	rec.Samples = append(rec.Samples, dec.Did.ValueHex)
	if len(rec.Samples) > didSampleCap {
		rec.Samples = rec.Samples[len(rec.Samples)-didSampleCap:]
	}
	if rec.DataType == uds.DataTypeUnknown {
		rec.DataType = uds.GuessDataType(dec.Did.ValueHex)
	}
}

func (t *tracker) applyDtc(ecu *ECU, dec uds.Decoded) {
	if dec.Dtc == nil {
		return
	}
	for _, d := range dec.Dtc.DTCs {
		rec, ok := ecu.DTCs[d.Code]
		if !ok {
			ecu.DTCs[d.Code] = &DTCRecord{
				Code:        d.Code,
				RawHex:      d.RawHex,
				FMI:         d.FMI,
				FMIMeaning:  d.FMIMeaning,
				StatusByte:  d.StatusByte,
				StatusFlags: d.StatusFlags,
			}
			ecu.dtcOrder = append(ecu.dtcOrder, d.Code)
			continue
		}
		// Dedup by code: the first occurrence wins, later ones only
		// refresh the status mask.
		rec.StatusByte = d.StatusByte
		rec.StatusFlags = d.StatusFlags
	}
}

func (t *tracker) applyRoutine(ecu *ECU, dec uds.Decoded) {
	if dec.Routine == nil || dec.Routine.RoutineID == "" {
		return
	}
	rec, ok := ecu.Routines[dec.Routine.RoutineID]
	if !ok {
		rec = &RoutineRecord{ID: dec.Routine.RoutineID, ControlType: dec.Routine.ControlName}
		ecu.Routines[dec.Routine.RoutineID] = rec
		ecu.routineOrder = append(ecu.routineOrder, dec.Routine.RoutineID)
	}
	if dec.Routine.ControlName != "unknown" {
		rec.ControlType = dec.Routine.ControlName
	}
	if !dec.IsResponse {
		if dec.Routine.InputHex != "" {
			rec.InputHex = dec.Routine.InputHex
		}
		return
	}
	if dec.Routine.OutputHex != "" {
		rec.Outputs = append(rec.Outputs, dec.Routine.OutputHex)
	}
	if dec.Routine.StatusHex != "" {
		rec.StatusHistory = append(rec.StatusHistory, dec.Routine.StatusHex)
	}
}
