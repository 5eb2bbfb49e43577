package trace

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"example.com/udstrace/internal/common"
)

const (
	microsPerSecond = int64(1_000_000)
	microsPerDay    = 24 * 3600 * microsPerSecond
	// A backwards jump larger than this is treated as midnight rollover
	// rather than out-of-order capture.
	rolloverSlackUs = 12 * 3600 * microsPerSecond
)

var (
	// Optional line-number prefix, clock field, direction pair, then the body.
	lineRe = regexp.MustCompile(`^(?:\d+[:.]?\s+)?(\d{2}:\d{2}:\d{2}\.\d{3})\s*\|\s*\[(\w+)\]->\[(\w+)\]\s+(.*)$`)

	metaRe = regexp.MustCompile(`^METADATA\s*=>\s*key\[([^\]]*)\]\s*value\[([^\]]*)\]`)
	dataRe = regexp.MustCompile(`^DATA\s*=>\s*mod\[([^\]]+)\]\s*\[([^\]]+)\]\s*cmd\[([^\]]+)\]\s*args\[([^\]]*)\]\s*data\[([^\]]*)\]`)
	mercRe = regexp.MustCompile(`^DATA\s*=>\s*mod\[([^\]]+)\]\s*can_id\[([^\]]+)\]\s*data\[([^\]]*)\]`)
	doipRe = regexp.MustCompile(`^DOIP\s*=>\s*\[([^\]]*)\]\s*source\[([^\]]*)\]\s*target\[([^\]]*)\]\s*data\[([^\]]*)\]`)
)

// entityReplacer undoes the HTML escaping some capture tools apply before the
// grammar ever sees the text. &amp; must come last so double escapes survive
// one level at a time.
var entityReplacer = strings.NewReplacer(
	"&gt;", ">",
	"&lt;", "<",
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// ProtocolCANID is the transport label assigned to lines using the bare
// can_id grammar variant, which carries no protocol token of its own.
const ProtocolCANID = "CAN"

// Decoder walks a full trace text line by line and emits RawRecords. It is
// pure over the input string: decoding the same text twice yields identical
// records, and a fresh Decoder restarts from the top.
type Decoder struct {
	lines []string
	pos   int

	metrics *common.Metrics
	meta    *Metadata

	firstClockUs int64
	lastClockUs  int64
	dayCarryUs   int64
	clockSeen    bool

	accepted int
}

// NewDecoder prepares a decoder over the complete trace text.
func NewDecoder(text string) *Decoder {
	decoded := entityReplacer.Replace(text)
	return &Decoder{
		lines: strings.Split(decoded, "\n"),
		meta:  newMetadata(),
	}
}

// SetMetrics attaches a metrics recorder to the decoder.
func (d *Decoder) SetMetrics(m *common.Metrics) {
	d.metrics = m
	if d.metrics != nil {
		var total int64
		for _, l := range d.lines {
			total += int64(len(l)) + 1
		}
		d.metrics.SetTotalBytes(total)
	}
}

// Metadata returns the side-channel document accumulated so far.
func (d *Decoder) Metadata() *Metadata {
	return d.meta
}

// Accepted returns the number of records emitted so far.
func (d *Decoder) Accepted() int {
	return d.accepted
}

// LinesSeen returns the number of input lines consumed so far.
func (d *Decoder) LinesSeen() int {
	return d.pos
}

// Next returns the next accepted record. Lines that match no grammar are
// skipped without error; io.EOF signals the end of the trace.
func (d *Decoder) Next() (RawRecord, error) {
	for d.pos < len(d.lines) {
		raw := d.lines[d.pos]
		d.pos++
		if d.metrics != nil {
			d.metrics.AddLine(int64(len(raw)) + 1)
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		rec, ok := d.decodeLine(line, d.pos)
		if !ok {
			if d.metrics != nil {
				d.metrics.IncDropped()
			}
			continue
		}
		d.accepted++
		if d.metrics != nil {
			d.metrics.AddMessage()
		}
		return rec, nil
	}
	return RawRecord{}, io.EOF
}

// DecodeAll drains the decoder and returns every record in trace order.
func (d *Decoder) DecodeAll() []RawRecord {
	var out []RawRecord
	for {
		rec, err := d.Next()
		if err != nil {
			return out
		}
		out = append(out, rec)
	}
}

func (d *Decoder) decodeLine(line string, lineNo int) (RawRecord, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return RawRecord{}, false
	}
	clock, dirFrom, dirTo, body := m[1], m[2], m[3], m[4]
	dir, ok := parseDirection(dirFrom, dirTo)
	if !ok {
		return RawRecord{}, false
	}

	rec := RawRecord{
		Line:      lineNo,
		Timestamp: clock,
		OffsetUs:  d.clockOffset(clock),
		Direction: dir,
	}

	if g := metaRe.FindStringSubmatch(body); g != nil {
		rec.Kind = KindMetadata
		rec.MetaKey = strings.TrimSpace(g[1])
		rec.MetaValue = strings.TrimSpace(g[2])
		d.meta.add(rec.MetaKey, rec.MetaValue)
		return rec, true
	}
	if g := dataRe.FindStringSubmatch(body); g != nil {
		rec.Kind = KindData
		rec.Module = strings.TrimSpace(g[1])
		rec.Protocol = strings.TrimSpace(g[2])
		rec.Command = strings.TrimSpace(g[3])
		rec.AddrArgs = splitHexTokens(g[4])
		rec.DataHex = CleanHex(g[5])
		return rec, true
	}
	if g := mercRe.FindStringSubmatch(body); g != nil {
		rec.Kind = KindData
		rec.Module = strings.TrimSpace(g[1])
		rec.Protocol = ProtocolCANID
		rec.AddrArgs = splitHexTokens(g[2])
		rec.DataHex = CleanHex(g[3])
		return rec, true
	}
	if g := doipRe.FindStringSubmatch(body); g != nil {
		rec.Kind = KindDoIP
		rec.Module = "DoIP"
		rec.Protocol = "DOIP"
		rec.Command = strings.TrimSpace(g[1])
		rec.AddrArgs = []string{CleanHex(g[2]), CleanHex(g[3])}
		rec.DataHex = CleanHex(g[4])
		return rec, true
	}
	return RawRecord{}, false
}

// clockOffset converts the HH:MM:SS.mmm field into microseconds relative to
// the first accepted record. The trace itself is the epoch anchor: no wall
// clock is consulted, so repeated decodes are byte-identical.
func (d *Decoder) clockOffset(clock string) int64 {
	us, ok := parseClock(clock)
	if !ok {
		return -1
	}
	if !d.clockSeen {
		d.clockSeen = true
		d.firstClockUs = us
		d.lastClockUs = us
		return 0
	}
	if us+d.dayCarryUs < d.lastClockUs-rolloverSlackUs {
		d.dayCarryUs += microsPerDay
	}
	adjusted := us + d.dayCarryUs
	if adjusted > d.lastClockUs {
		d.lastClockUs = adjusted
	}
	return adjusted - d.firstClockUs
}

func parseClock(clock string) (int64, bool) {
	// HH:MM:SS.mmm, validated by the line regex.
	if len(clock) != 12 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(clock[0:2])
	mm, err2 := strconv.Atoi(clock[3:5])
	ss, err3 := strconv.Atoi(clock[6:8])
	ms, err4 := strconv.Atoi(clock[9:12])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, false
	}
	if hh > 23 || mm > 59 || ss > 60 {
		return 0, false
	}
	total := (int64(hh)*3600+int64(mm)*60+int64(ss))*microsPerSecond + int64(ms)*1000
	return total, true
}

func parseDirection(from, to string) (Direction, bool) {
	switch {
	case strings.EqualFold(from, "Local") && strings.EqualFold(to, "Remote"):
		return DirLocalToRemote, true
	case strings.EqualFold(from, "Remote") && strings.EqualFold(to, "Local"):
		return DirRemoteToLocal, true
	case strings.EqualFold(from, "Server") && strings.EqualFold(to, "Tracer"):
		return DirServerToTracer, true
	default:
		return "", false
	}
}

// CleanHex normalizes a hex token: 0x prefixes, spaces, commas and case are
// stripped. Non-hex characters invalidate the token entirely.
func CleanHex(s string) string {
	var b strings.Builder
	s = strings.TrimSpace(s)
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
		part = strings.TrimPrefix(strings.TrimPrefix(part, "0x"), "0X")
		for _, r := range part {
			switch {
			case r >= '0' && r <= '9':
				b.WriteRune(r)
			case r >= 'a' && r <= 'f':
				b.WriteRune(r - 'a' + 'A')
			case r >= 'A' && r <= 'F':
				b.WriteRune(r)
			default:
				return ""
			}
		}
	}
	return b.String()
}

func splitHexTokens(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		cleaned := CleanHex(p)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
