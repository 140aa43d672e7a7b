// Package metrics exposes prometheus counters for the realtime layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	HandshakesRejected  prometheus.Counter
	JoinsDenied         prometheus.Counter
	BroadcastFrames     prometheus.Counter
	DroppedFrames       prometheus.Counter
	EventsDiscarded     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_connections_accepted_total",
			Help: "Connections that passed the handshake gatekeeper.",
		}),
		HandshakesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_handshakes_rejected_total",
			Help: "Connections refused before upgrade for bad credentials.",
		}),
		JoinsDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_joins_denied_total",
			Help: "Join requests refused for missing membership or store failure.",
		}),
		BroadcastFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_broadcast_frames_total",
			Help: "Frames fanned out to room peers.",
		}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_dropped_frames_total",
			Help: "Frames dropped on slow connections (backpressure).",
		}),
		EventsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "devcollab_events_discarded_total",
			Help: "Inbound events silently dropped by state or role gating.",
		}),
	}
}
