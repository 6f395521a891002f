package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled by actor role.",
		},
		[]string{"actor"},
	)

	slotCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "slot_created_total",
			Help:      "Count of time slots created.",
		},
	)

	slotDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "slot_deleted_total",
			Help:      "Count of time slots deleted.",
		},
	)

	domainConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "domain_conflict_total",
			Help:      "Count of operations denied by booking rules.",
		},
		[]string{"operation"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "calbook",
			Name:      "ws_clients",
			Help:      "Number of connected websocket subscribers.",
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "calbook",
			Name:      "events_published_total",
			Help:      "Count of calendar events published by type.",
		},
		[]string{"type"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingCreated,
			bookingCancelled,
			slotCreated,
			slotDeleted,
			domainConflicts,
			wsClients,
			eventsPublished,
		)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingCancelled(actor string) {
	bookingCancelled.WithLabelValues(actor).Inc()
}

func IncSlotCreated() {
	slotCreated.Inc()
}

func IncSlotDeleted() {
	slotDeleted.Inc()
}

func IncDomainConflict(operation string) {
	domainConflicts.WithLabelValues(operation).Inc()
}

func SetWSClients(n int) {
	wsClients.Set(float64(n))
}

func IncEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}
