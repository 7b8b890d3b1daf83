package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RadiusSyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ispb_radius_sync_total",
			Help: "RADIUS attribute reconciliations by operation and result",
		},
		[]string{"op", "result"}, // create|update|delete , ok|error
	)

	RadiusRowChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ispb_radius_row_changes_total",
			Help: "RADIUS rows written by kind of change",
		},
		[]string{"change"}, // insert|update|delete
	)

	InvoiceConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ispb_invoice_number_conflicts_total",
			Help: "Invoice number uniqueness conflicts that triggered a renumbering",
		},
	)

	OverdueMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ispb_billing_overdue_marked_total",
			Help: "Pending billing records moved to overdue by the sweeper",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ispb_events_total",
			Help: "Domain events by stage and type",
		},
		[]string{"stage", "type"}, // queued|processed|skipped|failed
	)

	CoANotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ispb_coa_notifications_total",
			Help: "Change-of-authorization notifications by result",
		},
		[]string{"result"}, // sent|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RadiusSyncTotal,
		RadiusRowChanges,
		InvoiceConflicts,
		OverdueMarked,
		EventsTotal,
		CoANotifications,
	)
}
