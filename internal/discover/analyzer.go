package discover

import (
	"sort"
	"strings"

	"example.com/udstrace/internal/addr"
	"example.com/udstrace/internal/common"
	"example.com/udstrace/internal/dict"
	"example.com/udstrace/internal/trace"
	"example.com/udstrace/internal/uds"
)

// Options configures one analysis run.
type Options struct {
	// Dict is the optional ECU knowledge base for name/OEM resolution.
	Dict *dict.Store
	// Metrics, when set, records throughput counters for the run.
	Metrics *common.Metrics
	// IncludeProcedureMessages keeps the per-message digests on procedure
	// projections. Off by default to keep summaries compact.
	IncludeProcedureMessages bool
}

// Analyze performs a single-threaded, single-pass discovery over the complete
// trace text. All accumulator state is local to the call: two concurrent
// analyses never share anything, and re-running the same text yields an
// identical summary.
func Analyze(text string, opts Options) Summary {
	dec := trace.NewDecoder(text)
	if opts.Metrics != nil {
		dec.SetMetrics(opts.Metrics)
		opts.Metrics.Start()
		defer opts.Metrics.Stop()
	}

	tr := newTracker(opts.Dict)
	seg := newSegmenter()
	oem := newOEMHeuristic()

	var (
		messageCount int
		metaCount    int
		startTime    string
		endTime      string
		lastOffset   int64
		protoCounts  = make(map[addr.Protocol]int)
	)

	for {
		rec, err := dec.Next()
		if err != nil {
			break
		}
		if rec.Kind == trace.KindMetadata {
			metaCount++
			continue
		}

		msg := addr.Normalize(rec)
		messageCount++
		if startTime == "" {
			startTime = msg.Timestamp
		}
		endTime = msg.Timestamp
		if msg.OffsetUs > lastOffset {
			lastOffset = msg.OffsetUs
		}
		if msg.Protocol != addr.ProtocolUnknown {
			protoCounts[msg.Protocol]++
		}
		oem.observe(msg)

		var decoded uds.Decoded
		if len(msg.DataHex) >= 2 {
			decoded = uds.Decode(msg.DataHex, msg.Direction == trace.DirRemoteToLocal)
		}
		if msg.ECUAddress != "" {
			tr.apply(msg, decoded)
		}
		seg.feed(msg, decoded)
	}

	summary := Summary{
		Digest:        common.Sha256OfString(text),
		Protocol:      dominantProtocol(protoCounts),
		LineCount:     int64(dec.LinesSeen()),
		MessageCount:  messageCount,
		MetadataCount: metaCount,
		ECUCount:      len(tr.order),
		StartTime:     startTime,
		EndTime:       endTime,
		DurationUs:    lastOffset,
		Vehicle:       projectVehicle(dec.Metadata()),
		ECUs:          make([]ECUSummary, 0, len(tr.order)),
	}

	addresses := make([]string, len(tr.order))
	copy(addresses, tr.order)
	sort.Strings(addresses)
	for _, address := range addresses {
		summary.ECUs = append(summary.ECUs, projectECU(tr.ecus[address]))
	}

	procs := projectProcedures(seg.finish())
	if !opts.IncludeProcedureMessages {
		for i := range procs {
			procs[i].Messages = nil
		}
	}
	summary.Procedures = procs
	summary.ProbableOEM = oem.conclude(tr)
	return summary
}

func dominantProtocol(counts map[addr.Protocol]int) string {
	best := addr.ProtocolUnknown
	bestCount := 0
	for proto, n := range counts {
		if n > bestCount || (n == bestCount && proto < best) {
			best = proto
			bestCount = n
		}
	}
	if bestCount == 0 {
		return string(addr.ProtocolUnknown)
	}
	return string(best)
}

// oemHeuristic votes on the probable OEM from transport labels and addressing
// schemes. Best effort only; the knowledge base outranks it.
type oemHeuristic struct {
	votes map[string]int
}

func newOEMHeuristic() *oemHeuristic {
	return &oemHeuristic{votes: make(map[string]int)}
}

func (h *oemHeuristic) observe(msg addr.Message) {
	label := strings.ToUpper(msg.RawRecord.Protocol)
	switch {
	case strings.Contains(label, "HONDA"):
		h.votes["Honda"]++
	case strings.Contains(label, "HYUNDAI") || strings.Contains(label, "KIA"):
		h.votes["Hyundai/Kia"]++
	case strings.Contains(label, "MERCEDES") || label == trace.ProtocolCANID:
		h.votes["Mercedes-Benz"]++
	case msg.Scheme == addr.SchemeCAN11Paired:
		h.votes["Hyundai/Kia"]++
	}
}

func (h *oemHeuristic) conclude(tr *tracker) string {
	// Knowledge-base OEM entries carry more weight than label votes.
	for _, address := range tr.order {
		if oem := tr.ecus[address].OEM; oem != "" {
			h.votes[oem] += 10
		}
	}
	best, bestCount := "", 0
	names := make([]string, 0, len(h.votes))
	for name := range h.votes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if h.votes[name] > bestCount {
			best = name
			bestCount = h.votes[name]
		}
	}
	return best
}
