package uds

import "testing"

func TestEffectiveServiceIDFolding(t *testing.T) {
	for s := 0; s < 256; s++ {
		sid := byte(s)
		got := EffectiveServiceID(sid)
		var want byte
		if sid >= 0x40 && sid != 0x7F {
			want = sid - 0x40
		} else {
			want = sid
		}
		if got != want {
			t.Fatalf("EffectiveServiceID(0x%02X) = 0x%02X, want 0x%02X", sid, got, want)
		}
		if IsPositiveResponse(sid) != (sid >= 0x40 && sid != 0x7F) {
			t.Fatalf("IsPositiveResponse(0x%02X) inconsistent", sid)
		}
	}
}

func TestDecodeSessionControl(t *testing.T) {
	req := Decode("1003", false)
	if req.Kind != KindSessionControl || req.IsResponse {
		t.Fatalf("kind=%v response=%v", req.Kind, req.IsResponse)
	}
	if req.Session == nil || req.Session.Type != 0x03 || req.Session.Name != "extended" {
		t.Fatalf("session = %+v", req.Session)
	}

	resp := Decode("5003", true)
	if !resp.IsResponse || resp.ServiceID != ServiceDiagnosticSessionControl {
		t.Fatalf("response fold: %+v", resp)
	}
	if resp.Session == nil || resp.Session.Name != "extended" {
		t.Fatalf("session = %+v", resp.Session)
	}

	// Suppress-response bit masked away when naming the session.
	masked := Decode("1083", false)
	if masked.Session == nil || masked.Session.Name != "extended" {
		t.Fatalf("masked session = %+v", masked.Session)
	}
}

func TestDecodeSecurityAccess(t *testing.T) {
	seed := Decode("2703", false)
	if seed.Kind != KindSecurityAccess || seed.Security == nil {
		t.Fatalf("decoded = %+v", seed)
	}
	if seed.Security.Level != 0x03 || !seed.Security.SeedRequest {
		t.Fatalf("security = %+v", seed.Security)
	}

	key := Decode("2704DEADBEEF", false)
	if key.Security == nil || key.Security.SeedRequest {
		t.Fatalf("even level marked as seed: %+v", key.Security)
	}
}

func TestDecodeDidRead(t *testing.T) {
	resp := Decode("62F1904A414C", true)
	if resp.Kind != KindDidRead || resp.Did == nil {
		t.Fatalf("decoded = %+v", resp)
	}
	if resp.Did.DID != "F190" || resp.Did.ValueHex != "4A414C" {
		t.Fatalf("did = %+v", resp.Did)
	}

	// A bare request with no identifier bytes still decodes as a DID read.
	req := Decode("2203", false)
	if req.Kind != KindDidRead || req.Did == nil || req.Did.DID != "" {
		t.Fatalf("short request: %+v", req.Did)
	}

	// Request payload never carries a value.
	full := Decode("22F190", false)
	if full.Did.DID != "F190" || full.Did.ValueHex != "" {
		t.Fatalf("request did = %+v", full.Did)
	}
}

func TestDecodeDtcReport(t *testing.T) {
	count := Decode("590102", true)
	if count.Kind != KindDtcReport || count.Dtc == nil {
		t.Fatalf("decoded = %+v", count)
	}
	if !count.Dtc.CountOnly || len(count.Dtc.DTCs) != 0 {
		t.Fatalf("count report = %+v", count.Dtc)
	}

	full := Decode("5902FF0301082E41020508", true)
	if full.Dtc == nil || full.Dtc.SubFunction != 0x02 {
		t.Fatalf("decoded = %+v", full.Dtc)
	}
	if len(full.Dtc.DTCs) != 2 {
		t.Fatalf("dtc count = %d, want 2", len(full.Dtc.DTCs))
	}
	if full.Dtc.DTCs[0].Code != "P0301" || full.Dtc.DTCs[1].Code != "C0102" {
		t.Fatalf("codes = %s, %s", full.Dtc.DTCs[0].Code, full.Dtc.DTCs[1].Code)
	}

	// Requests carry the sub-function but never expand records.
	req := Decode("1902FF", false)
	if req.Dtc == nil || len(req.Dtc.DTCs) != 0 {
		t.Fatalf("request expanded records: %+v", req.Dtc)
	}
}

func TestDecodeRoutineControl(t *testing.T) {
	req := Decode("31010203AABB", false)
	if req.Kind != KindRoutineControl || req.Routine == nil {
		t.Fatalf("decoded = %+v", req)
	}
	r := req.Routine
	if r.ControlType != 0x01 || r.ControlName != "start" || r.RoutineID != "0203" {
		t.Fatalf("routine = %+v", r)
	}
	if r.InputHex != "AABB" || r.OutputHex != "" {
		t.Fatalf("routine tail = %+v", r)
	}

	resp := Decode("7101020312345678", true)
	if resp.Routine.OutputHex != "12345678" || resp.Routine.StatusHex != "1234" {
		t.Fatalf("response routine = %+v", resp.Routine)
	}
	if resp.Routine.InputHex != "" {
		t.Fatalf("response carried input: %+v", resp.Routine)
	}
}

func TestDecodeTesterPresent(t *testing.T) {
	if d := Decode("3E80", false); d.Tester == nil || !d.Tester.SuppressResponse {
		t.Fatalf("suppress not detected: %+v", d.Tester)
	}
	if d := Decode("3E00", false); d.Tester == nil || d.Tester.SuppressResponse {
		t.Fatalf("suppress wrongly set: %+v", d.Tester)
	}
}

func TestDecodeFoldsOnlyOnResponses(t *testing.T) {
	// ControlDTCSetting sits above 0x40; a request must keep its own id.
	req := Decode("8502", false)
	if req.IsResponse {
		t.Fatalf("request classified as response: %+v", req)
	}
	if req.ServiceID != ServiceControlDTCSetting || req.RawServiceID != ServiceControlDTCSetting {
		t.Fatalf("request service = 0x%02X, want 0x%02X", req.ServiceID, ServiceControlDTCSetting)
	}

	resp := Decode("C502", true)
	if !resp.IsResponse || resp.ServiceID != ServiceControlDTCSetting {
		t.Fatalf("response fold: %+v", resp)
	}

	// The fold never fires tester-side even for ids in the response range.
	if d := Decode("5003", false); d.IsResponse || d.ServiceID != 0x50 {
		t.Fatalf("tester-side 0x50 folded: %+v", d)
	}
}

func TestDecodeNegativeResponse(t *testing.T) {
	d := Decode("7F2231", true)
	if d.Kind != KindNegativeResponse || d.IsResponse {
		t.Fatalf("decoded = %+v", d)
	}
	if d.ServiceID != 0x7F || d.RawServiceID != 0x7F {
		t.Fatalf("sentinel folded: %+v", d)
	}
	n := d.Negative
	if n == nil || n.RequestedService != 0x22 || n.NRC != 0x31 {
		t.Fatalf("negative = %+v", n)
	}
	if n.NRCName != "requestOutOfRange" {
		t.Fatalf("nrc name = %q", n.NRCName)
	}
}

func TestDecodeUnknownAndTruncated(t *testing.T) {
	if d := Decode("", false); d.RawServiceID != 0 || d.Kind != KindGeneric {
		t.Fatalf("empty payload decoded: %+v", d)
	}
	if d := Decode("X", false); d.RawServiceID != 0 {
		t.Fatalf("odd payload decoded: %+v", d)
	}
	// Write-family services decode as generic capability flags.
	if d := Decode("2EF190AA", false); d.Kind != KindGeneric || d.ServiceID != ServiceWriteDataByIdentifier {
		t.Fatalf("write decoded as %+v", d)
	}
}

func TestServiceName(t *testing.T) {
	if got := ServiceName(0x22); got != "Read Data By Identifier" {
		t.Fatalf("name = %q", got)
	}
	if got := ServiceName(0xBA); got != "0xBA" {
		t.Fatalf("fallback name = %q", got)
	}
}
