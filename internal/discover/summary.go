package discover

import (
	"fmt"
	"sort"

	"example.com/udstrace/internal/trace"
	"example.com/udstrace/internal/uds"
)

// summarySampleCap bounds the samples carried into the projection; the
// tracker keeps up to didSampleCap internally.
const summarySampleCap = 3

// ServiceSummary is one supported service in the projection.
type ServiceSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DIDSummary is the projection of one discovered data identifier.
type DIDSummary struct {
	DID        string   `json:"did"`
	Name       string   `json:"name,omitempty"`
	DataType   string   `json:"dataType,omitempty"`
	DataLength int      `json:"dataLength"`
	Samples    []string `json:"samples,omitempty"`
	ASCII      string   `json:"ascii,omitempty"`
}

// DTCSummary is the projection of one trouble code.
type DTCSummary struct {
	Code       string   `json:"code"`
	Status     []string `json:"status"`
	StatusByte string   `json:"statusByte"`
	RawHex     string   `json:"rawHex"`
	FMI        string   `json:"fmi,omitempty"`
	FMIMeaning string   `json:"fmiMeaning,omitempty"`
}

// RoutineSummary is the projection of one routine.
type RoutineSummary struct {
	ID            string   `json:"id"`
	ControlType   string   `json:"controlType"`
	Input         string   `json:"input,omitempty"`
	Outputs       []string `json:"outputs,omitempty"`
	StatusHistory []string `json:"statusHistory,omitempty"`
}

// ECUSummary is the serializable projection of a discovery record.
type ECUSummary struct {
	Address        string           `json:"address"`
	Name           string           `json:"name"`
	OEM            string           `json:"oem,omitempty"`
	Protocol       string           `json:"protocol"`
	MessageCount   int              `json:"messageCount"`
	FirstSeen      string           `json:"firstSeen,omitempty"`
	LastSeen       string           `json:"lastSeen,omitempty"`
	Services       []ServiceSummary `json:"services,omitempty"`
	SessionTypes   []string         `json:"sessionTypes,omitempty"`
	SecurityLevels []string         `json:"securityLevels,omitempty"`
	DIDs           []DIDSummary     `json:"dids,omitempty"`
	DTCs           []DTCSummary     `json:"dtcs,omitempty"`
	Routines       []RoutineSummary `json:"routines,omitempty"`
}

// ProcedureSummary is the serializable projection of one procedure.
type ProcedureSummary struct {
	ID         int                `json:"id"`
	ECUAddress string             `json:"ecuAddress,omitempty"`
	Type       string             `json:"type"`
	StartTime  string             `json:"startTime"`
	EndTime    string             `json:"endTime"`
	Status     string             `json:"status"`
	Messages   []ProcedureMessage `json:"messages,omitempty"`
}

// VehicleInfo carries the metadata side channel into the summary.
type VehicleInfo struct {
	Voltage    string            `json:"voltage,omitempty"`
	Info       []trace.MetaEntry `json:"info,omitempty"`
	Connection []trace.MetaEntry `json:"connection,omitempty"`
	Connectors []trace.MetaEntry `json:"connectors,omitempty"`
	Channels   []trace.MetaEntry `json:"channels,omitempty"`
}

// Summary is the aggregate result of one trace analysis.
type Summary struct {
	Digest        string             `json:"digest"`
	Protocol      string             `json:"protocol"`
	ProbableOEM   string             `json:"probableOEM,omitempty"`
	LineCount     int64              `json:"lineCount"`
	MessageCount  int                `json:"messageCount"`
	MetadataCount int                `json:"metadataCount"`
	ECUCount      int                `json:"ecuCount"`
	StartTime     string             `json:"startTime,omitempty"`
	EndTime       string             `json:"endTime,omitempty"`
	DurationUs    int64              `json:"durationUs"`
	Vehicle       *VehicleInfo       `json:"vehicle,omitempty"`
	ECUs          []ECUSummary       `json:"ecus"`
	Procedures    []ProcedureSummary `json:"procedures"`
}

// projectECU flattens one discovery record. Sets and maps come out sorted so
// repeated parses serialize identically.
func projectECU(ecu *ECU) ECUSummary {
	out := ECUSummary{
		Address:      ecu.Address,
		Name:         ecu.Name,
		OEM:          ecu.OEM,
		Protocol:     string(ecu.Protocol),
		MessageCount: ecu.MessageCount,
		FirstSeen:    ecu.FirstSeen,
		LastSeen:     ecu.LastSeen,
	}

	services := make([]byte, 0, len(ecu.Services))
	for sid := range ecu.Services {
		services = append(services, sid)
	}
	sort.Slice(services, func(i, j int) bool { return services[i] < services[j] })
	for _, sid := range services {
		out.Services = append(out.Services, ServiceSummary{
			ID:   fmt.Sprintf("0x%02X", sid),
			Name: uds.ServiceName(sid),
		})
	}

	sessions := make([]byte, 0, len(ecu.SessionTypes))
	for s := range ecu.SessionTypes {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i] < sessions[j] })
	for _, s := range sessions {
		out.SessionTypes = append(out.SessionTypes, uds.SessionName(s))
	}

	levels := make([]byte, 0, len(ecu.SecurityLevels))
	for l := range ecu.SecurityLevels {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	for _, l := range levels {
		out.SecurityLevels = append(out.SecurityLevels, fmt.Sprintf("0x%02X", l))
	}

	for _, id := range sortedCopy(ecu.didOrder) {
		rec := ecu.DIDs[id]
		ds := DIDSummary{
			DID:        rec.ID,
			Name:       rec.Name,
			DataType:   string(rec.DataType),
			DataLength: rec.DataLength,
		}
		samples := rec.Samples
		if len(samples) > summarySampleCap {
			samples = samples[len(samples)-summarySampleCap:]
		}
		ds.Samples = append(ds.Samples, samples...)
		if rec.DataType == uds.DataTypeASCII && len(rec.Samples) > 0 {
			ds.ASCII = uds.DecodeASCII(rec.Samples[len(rec.Samples)-1])
		}
		out.DIDs = append(out.DIDs, ds)
	}

	for _, code := range sortedCopy(ecu.dtcOrder) {
		rec := ecu.DTCs[code]
		out.DTCs = append(out.DTCs, DTCSummary{
			Code:       rec.Code,
			Status:     rec.StatusFlags,
			StatusByte: fmt.Sprintf("0x%02X", rec.StatusByte),
			RawHex:     rec.RawHex,
			FMI:        rec.FMI,
			FMIMeaning: rec.FMIMeaning,
		})
	}

	for _, id := range sortedCopy(ecu.routineOrder) {
		rec := ecu.Routines[id]
		out.Routines = append(out.Routines, RoutineSummary{
			ID:            rec.ID,
			ControlType:   rec.ControlType,
			Input:         rec.InputHex,
			Outputs:       rec.Outputs,
			StatusHistory: rec.StatusHistory,
		})
	}

	return out
}

func projectProcedures(procs []*Procedure) []ProcedureSummary {
	out := make([]ProcedureSummary, 0, len(procs))
	for _, p := range procs {
		out = append(out, ProcedureSummary{
			ID:         p.ID,
			ECUAddress: p.ECUAddress,
			Type:       p.Type,
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			Status:     p.Status,
			Messages:   p.Messages,
		})
	}
	return out
}

func projectVehicle(meta *trace.Metadata) *VehicleInfo {
	if meta == nil {
		return nil
	}
	info := &VehicleInfo{
		Info:       meta.WithPrefix(trace.MetaPrefixVehicleInfo),
		Connection: meta.WithPrefix(trace.MetaPrefixConnection),
		Connectors: meta.WithPrefix(trace.MetaPrefixConnectors),
		Channels:   meta.WithPrefix(trace.MetaPrefixECUChannel),
	}
	if v, ok := meta.Voltage(); ok {
		info.Voltage = v
	}
	if info.Voltage == "" && info.Info == nil && info.Connection == nil && info.Connectors == nil && info.Channels == nil {
		return nil
	}
	return info
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
