package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsReceivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "socialbot_eventbus_events_received_total",
	Help: "Total change receipts taken off the transport, per table.",
}, []string{"table"})

var eventsDedupedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "socialbot_eventbus_events_deduplicated_total",
	Help: "Receipts discarded at or below the dedup watermark, per table.",
}, []string{"table"})

var eventsDispatchedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "socialbot_eventbus_events_dispatched_total",
	Help: "Events that reached at least one handler, per table.",
}, []string{"table"})

var handlerErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "socialbot_eventbus_handler_errors_total",
	Help: "Handler invocations that returned an error or panicked, per table.",
}, []string{"table"})

var reconnectsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "socialbot_eventbus_reconnects_total",
	Help: "Transport reconnection attempts.",
})

var busStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "socialbot_eventbus_state",
	Help: "Current bus state (0 disconnected, 1 connecting, 2 subscribed, 3 stopped).",
})
