// Package output renders received snapshots for the console subscriber.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/albscui/aiperf/internal/metrics"
)

// LivePrinter writes each received snapshot as a table.
type LivePrinter struct {
	writer  io.Writer
	updates int
}

// NewLivePrinter creates a printer targeting the given writer.
func NewLivePrinter(writer io.Writer) *LivePrinter {
	if writer == nil {
		writer = io.Discard
	}
	return &LivePrinter{writer: writer}
}

// PrintSnapshot renders one realtime metrics message.
func (p *LivePrinter) PrintSnapshot(msg *metrics.RealtimeMessage) {
	p.updates++
	fmt.Fprintf(p.writer, "UPDATE #%d  service=%s  request_ns=%d\n", p.updates, msg.ServiceID, msg.RequestNS)
	fmt.Fprintf(p.writer, "%-28s %8s %10s %10s %10s %10s %10s %6s\n",
		"Metric", "Count", "Avg", "Min", "Max", "P50", "P99", "Unit")
	fmt.Fprintln(p.writer, strings.Repeat("-", 98))
	for _, r := range msg.Metrics {
		fmt.Fprintf(p.writer, "%-28s %8d %10s %10s %10s %10s %10s %6s\n",
			r.Header, r.Count,
			fmtStat(r.Avg), fmtStat(r.Min), fmtStat(r.Max),
			fmtStat(r.P50), fmtStat(r.P99), r.DisplayUnit)
	}
	fmt.Fprintln(p.writer)
}

// PrintRaw summarizes a frame from a topic with no decoded schema, pulling
// the common envelope fields out of the JSON payload.
func (p *LivePrinter) PrintRaw(topic string, payload []byte) {
	msgType := gjson.GetBytes(payload, "message_type").String()
	serviceID := gjson.GetBytes(payload, "service_id").String()
	if msgType == metrics.MessageTypeProcessingStats {
		total := gjson.GetBytes(payload, "total_records").Int()
		unknown := gjson.GetBytes(payload, "unknown_tag_records").Int()
		fmt.Fprintf(p.writer, "[%s] service=%s records=%d unknown_tags=%d\n", msgType, serviceID, total, unknown)
		return
	}
	fmt.Fprintf(p.writer, "[%s] topic=%s %d bytes\n", msgType, topic, len(payload))
}

func fmtStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
