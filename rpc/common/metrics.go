package common

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics counts the traffic of one server role or client.
// All counters are safe for concurrent use.
type Metrics struct {
	set *metrics.Set

	ConnectionsAccepted *metrics.Counter
	ConnectionsRejected *metrics.Counter
	ConnectionsClosed   *metrics.Counter
	ConnectionsActive   *metrics.Counter
	FramesIn            *metrics.Counter
	FramesOut           *metrics.Counter
	BytesIn             *metrics.Counter
	BytesOut            *metrics.Counter
	DecodeErrors        *metrics.Counter
	UnknownFrames       *metrics.Counter
}

// NewMetrics registers the csIPC counters for the given role in set.
// Each role name may only be registered once per set.
func NewMetrics(set *metrics.Set, role string) *Metrics {
	name := func(metric string) string {
		return fmt.Sprintf(`csipc_%s{role=%q}`, metric, role)
	}

	return &Metrics{
		set:                 set,
		ConnectionsAccepted: set.NewCounter(name("connections_accepted_total")),
		ConnectionsRejected: set.NewCounter(name("connections_rejected_total")),
		ConnectionsClosed:   set.NewCounter(name("connections_closed_total")),
		ConnectionsActive:   set.NewCounter(name("connections_active")),
		FramesIn:            set.NewCounter(name("frames_in_total")),
		FramesOut:           set.NewCounter(name("frames_out_total")),
		BytesIn:             set.NewCounter(name("bytes_in_total")),
		BytesOut:            set.NewCounter(name("bytes_out_total")),
		DecodeErrors:        set.NewCounter(name("decode_errors_total")),
		UnknownFrames:       set.NewCounter(name("unknown_frames_total")),
	}
}

// NewStandaloneMetrics creates metrics backed by a private set, handy for tests and clients
func NewStandaloneMetrics(role string) *Metrics {
	return NewMetrics(metrics.NewSet(), role)
}

// WritePrometheus writes the set the metrics belong to in Prometheus text format
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
