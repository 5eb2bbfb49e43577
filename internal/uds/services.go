// Package uds decodes ISO 14229 service payloads observed on a diagnostic
// trace. Decoding is stateless: one hex payload in, one tagged record out.
package uds

import "fmt"

// Request service identifiers.
const (
	ServiceDiagnosticSessionControl   byte = 0x10
	ServiceECUReset                   byte = 0x11
	ServiceClearDiagnosticInformation byte = 0x14
	ServiceReadDTCInformation         byte = 0x19
	ServiceReadDataByIdentifier       byte = 0x22
	ServiceSecurityAccess             byte = 0x27
	ServiceCommunicationControl       byte = 0x28
	ServiceWriteDataByIdentifier      byte = 0x2E
	ServiceRoutineControl             byte = 0x31
	ServiceRequestDownload            byte = 0x34
	ServiceTransferData               byte = 0x36
	ServiceRequestTransferExit        byte = 0x37
	ServiceWriteMemoryByAddress       byte = 0x3D
	ServiceTesterPresent              byte = 0x3E
	ServiceControlDTCSetting          byte = 0x85

	// ServiceNegativeResponse is the negative-response sentinel. It is
	// never a positive response even though it is >= 0x40.
	ServiceNegativeResponse byte = 0x7F

	positiveResponseOffset byte = 0x40
)

var serviceNames = map[byte]string{
	ServiceDiagnosticSessionControl:   "Diagnostic Session Control",
	ServiceECUReset:                   "ECU Reset",
	ServiceClearDiagnosticInformation: "Clear Diagnostic Information",
	ServiceReadDTCInformation:         "Read DTC Information",
	ServiceReadDataByIdentifier:       "Read Data By Identifier",
	ServiceSecurityAccess:             "Security Access",
	ServiceCommunicationControl:       "Communication Control",
	ServiceWriteDataByIdentifier:      "Write Data By Identifier",
	ServiceRoutineControl:             "Routine Control",
	ServiceRequestDownload:            "Request Download",
	ServiceTransferData:               "Transfer Data",
	ServiceRequestTransferExit:        "Request Transfer Exit",
	ServiceWriteMemoryByAddress:       "Write Memory By Address",
	ServiceTesterPresent:              "Tester Present",
	ServiceControlDTCSetting:          "Control DTC Setting",
	ServiceNegativeResponse:           "Negative Response",
}

// ServiceName returns the human label for a request service id.
func ServiceName(sid byte) string {
	if name, ok := serviceNames[sid]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", sid)
}

// IsPositiveResponse reports whether the wire byte is a positive-response
// service id.
func IsPositiveResponse(sid byte) bool {
	return sid >= positiveResponseOffset && sid != ServiceNegativeResponse
}

// EffectiveServiceID folds a positive-response id back onto its request id.
// 0x7F stays 0x7F.
func EffectiveServiceID(sid byte) byte {
	if IsPositiveResponse(sid) {
		return sid - positiveResponseOffset
	}
	return sid
}
