package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
)

// Collector adapts a Stats into a Prometheus collector, exporting the same
// counters Report() derives from, labeled by a session ID minted once per
// Collector; every transfer recorded in the wrapped Stats shares that ID.
type Collector struct {
	stats     *Stats
	role      string
	sessionID string

	descPacketsSent          *prometheus.Desc
	descPacketsReceived      *prometheus.Desc
	descPacketsRetransmitted *prometheus.Desc
	descAcksSent             *prometheus.Desc
	descAcksReceived         *prometheus.Desc
	descBytesSent            *prometheus.Desc
	descBytesReceived        *prometheus.Desc
	descThroughputMbps       *prometheus.Desc
	descRetransmitRate       *prometheus.Desc
}

// NewCollector wraps s for export under the srft_ namespace, labeling every
// series with role ("client" or "server") and a fresh xid-generated session
// ID (never placed on the wire; this is observability-only correlation).
func NewCollector(s *Stats, role string) *Collector {
	labels := []string{"role", "session"}
	return &Collector{
		stats:                    s,
		role:                     role,
		sessionID:                xid.New().String(),
		descPacketsSent:          prometheus.NewDesc("srft_packets_sent_total", "Application packets sent.", labels, nil),
		descPacketsReceived:      prometheus.NewDesc("srft_packets_received_total", "Application packets received.", labels, nil),
		descPacketsRetransmitted: prometheus.NewDesc("srft_packets_retransmitted_total", "Packets resent after a retransmit timeout.", labels, nil),
		descAcksSent:             prometheus.NewDesc("srft_acks_sent_total", "ACK frames sent.", labels, nil),
		descAcksReceived:         prometheus.NewDesc("srft_acks_received_total", "ACK frames received.", labels, nil),
		descBytesSent:            prometheus.NewDesc("srft_bytes_sent_total", "Payload and header bytes sent.", labels, nil),
		descBytesReceived:        prometheus.NewDesc("srft_bytes_received_total", "Payload and header bytes received.", labels, nil),
		descThroughputMbps:       prometheus.NewDesc("srft_throughput_mbps", "Current throughput in megabits per second.", labels, nil),
		descRetransmitRate:       prometheus.NewDesc("srft_retransmit_rate_percent", "Percentage of sent packets that were retransmits.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.descPacketsSent
	ch <- c.descPacketsReceived
	ch <- c.descPacketsRetransmitted
	ch <- c.descAcksSent
	ch <- c.descAcksReceived
	ch <- c.descBytesSent
	ch <- c.descBytesReceived
	ch <- c.descThroughputMbps
	ch <- c.descRetransmitRate
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	r := c.stats.Report()
	labels := []string{c.role, c.sessionID}

	ch <- prometheus.MustNewConstMetric(c.descPacketsSent, prometheus.CounterValue, float64(r.PacketsSent), labels...)
	ch <- prometheus.MustNewConstMetric(c.descPacketsReceived, prometheus.CounterValue, float64(r.PacketsReceived), labels...)
	ch <- prometheus.MustNewConstMetric(c.descPacketsRetransmitted, prometheus.CounterValue, float64(r.PacketsRetransmitted), labels...)
	ch <- prometheus.MustNewConstMetric(c.descAcksSent, prometheus.CounterValue, float64(r.AcksSent), labels...)
	ch <- prometheus.MustNewConstMetric(c.descAcksReceived, prometheus.CounterValue, float64(r.AcksReceived), labels...)
	ch <- prometheus.MustNewConstMetric(c.descBytesSent, prometheus.CounterValue, float64(r.BytesSent), labels...)
	ch <- prometheus.MustNewConstMetric(c.descBytesReceived, prometheus.CounterValue, float64(r.BytesReceived), labels...)
	ch <- prometheus.MustNewConstMetric(c.descThroughputMbps, prometheus.GaugeValue, r.ThroughputMbps, labels...)
	ch <- prometheus.MustNewConstMetric(c.descRetransmitRate, prometheus.GaugeValue, r.RetransmitRatePct, labels...)
}
