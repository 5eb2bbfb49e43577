package discover

import (
	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/uds"
)

// segmenter groups the message stream into contiguous diagnostic procedures.
// Only recognized top-level request services open a procedure; everything
// else rides along in the currently open one.
type segmenter struct {
	procedures []*Procedure
	open       *Procedure
	nextID     int
}

func newSegmenter() *segmenter {
	return &segmenter{nextID: 1}
}

func (s *segmenter) feed(msg addr.Message, dec uds.Decoded) {
	if msg.Direction.IsRequest() && !dec.IsResponse && len(msg.DataHex) >= 2 {
		if ptype, ok := procedureTypes[dec.ServiceID]; ok {
			s.closeOpen()
			s.open = &Procedure{
				ID:         s.nextID,
				ECUAddress: msg.ECUAddress,
				Type:       ptype,
				StartTime:  msg.Timestamp,
				EndTime:    msg.Timestamp,
				Status:     ProcedureStarted,
			}
			s.nextID++
		}
	}
	if s.open == nil {
		return
	}
	s.open.Messages = append(s.open.Messages, ProcedureMessage{
		Line:      msg.Line,
		Timestamp: msg.Timestamp,
		Request:   msg.Direction.IsRequest(),
		Service:   serviceToken(msg, dec),
		DataHex:   msg.DataHex,
	})
	s.open.EndTime = msg.Timestamp
}

// finish closes the trailing procedure at end of stream.
func (s *segmenter) finish() []*Procedure {
	s.closeOpen()
	return s.procedures
}

func (s *segmenter) closeOpen() {
	if s.open == nil {
		return
	}
	s.open.Status = ProcedureCompleted
	s.procedures = append(s.procedures, s.open)
	s.open = nil
}

func serviceToken(msg addr.Message, dec uds.Decoded) string {
	if len(msg.DataHex) < 2 {
		return ""
	}
	return uds.ServiceName(dec.ServiceID)
}
