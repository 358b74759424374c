package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dukani"

var (
	// OrdersCreated checkouts by payment method and delivery zone
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created at checkout.",
	}, []string{"payment_method", "zone"})

	// OrderTransitions state machine moves by axis (payment / fulfillment) and target
	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order state transitions applied.",
	}, []string{"axis", "to", "actor"})

	// STKPushRequests prompt requests by result (accepted / rejected / error)
	STKPushRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mpesa_stk_push_requests_total",
		Help:      "M-Pesa STK push requests sent to the gateway.",
	}, []string{"result"})

	// MpesaCallbacks callbacks and status queries by outcome
	MpesaCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mpesa_results_total",
		Help:      "M-Pesa payment results processed.",
	}, []string{"source", "outcome"})

	// NotificationsDispatched delivery attempts by channel and status
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dispatched_total",
		Help:      "Notification delivery attempts.",
	}, []string{"channel", "event_type", "status"})

	// HTTPRequests served requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"method", "route", "status"})

	// HTTPDuration request latency
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
