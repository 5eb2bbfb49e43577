package trace

// Direction identifies which side of the bench link emitted a line.
type Direction string

const (
	// DirLocalToRemote is a tester request going out to the vehicle.
	DirLocalToRemote Direction = "local_to_remote"
	// DirRemoteToLocal is a vehicle response coming back to the tester.
	DirRemoteToLocal Direction = "remote_to_local"
	// DirServerToTracer is the tool's own metadata side channel.
	DirServerToTracer Direction = "server_to_tracer"
)

// IsRequest reports whether the line travels tester-to-vehicle.
func (d Direction) IsRequest() bool {
	return d == DirLocalToRemote
}

// RecordKind tags the grammar a raw line matched.
type RecordKind int

const (
	KindMetadata RecordKind = iota
	KindData
	KindDoIP
)

func (k RecordKind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindData:
		return "data"
	case KindDoIP:
		return "doip"
	default:
		return "unknown"
	}
}

// RawRecord is one accepted trace line. Records are immutable once emitted by
// the decoder.
type RawRecord struct {
	Line      int    // 1-based line number in the trace text
	Timestamp string // HH:MM:SS.mmm exactly as captured
	OffsetUs  int64  // microseconds since the first accepted record, -1 if the clock field was absent
	Direction Direction
	Kind      RecordKind

	Module   string   // transport module, e.g. CAN2, K-line1
	Protocol string   // transport protocol label, e.g. HONDA ISOTP, ISO14230
	Command  string   // cmd[...] token, or the DoIP channel token
	AddrArgs []string // ordered hex address tokens (args / can_id / source,target)
	DataHex  string   // upper-case hex payload with 0x prefixes and separators removed

	MetaKey   string
	MetaValue string
}

// MetaEntry is one key/value pair from the metadata side channel.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata collects the tool's side-channel key/value pairs in capture order.
// It is a side output of decoding, not part of the diagnostic message stream.
type Metadata struct {
	entries []MetaEntry
	byKey   map[string]string
}

func newMetadata() *Metadata {
	return &Metadata{byKey: make(map[string]string)}
}

func (m *Metadata) add(key, value string) {
	if m == nil || key == "" {
		return
	}
	m.entries = append(m.entries, MetaEntry{Key: key, Value: value})
	if _, seen := m.byKey[key]; !seen {
		m.byKey[key] = value
	}
}

// Get returns the first captured value for key.
func (m *Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.byKey[key]
	return v, ok
}

// Entries returns all captured pairs in order.
func (m *Metadata) Entries() []MetaEntry {
	if m == nil {
		return nil
	}
	out := make([]MetaEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// WithPrefix returns the pairs whose key starts with the given prefix,
// preserving capture order.
func (m *Metadata) WithPrefix(prefix string) []MetaEntry {
	if m == nil {
		return nil
	}
	var out []MetaEntry
	for _, e := range m.entries {
		if len(e.Key) >= len(prefix) && e.Key[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

// Voltage returns the captured battery voltage, when the tool reported one.
func (m *Metadata) Voltage() (string, bool) {
	return m.Get("vehicle:info:voltage")
}

// Well-known metadata key prefixes surfaced to the summary.
const (
	MetaPrefixVehicleInfo = "vehicle:info:"
	MetaPrefixConnection  = "connection:"
	MetaPrefixConnectors  = "connectors:"
	MetaPrefixECUChannel  = "ecu:channel:"
)
