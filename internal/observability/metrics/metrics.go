package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	// MustCurryWith on a histogram vec returns the ObserverVec interface, so
	// the var is declared as that interface to allow the reassignment in
	// MustRegister.
	HTTPRequestDurationSeconds prometheus.ObserverVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	DeviceRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_registrations_total",
			Help: "Total number of device registration attempts.",
		},
		[]string{"result"},
	)

	DeviceDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_deletions_total",
			Help: "Total number of device deletion attempts.",
		},
		[]string{"result"},
	)

	PreKeyUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prekey_uploads_total",
			Help: "Total number of one-time prekey upload attempts.",
		},
		[]string{"result"},
	)

	SignedPreKeyRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signed_prekey_rotations_total",
			Help: "Total number of signed prekey replacement attempts.",
		},
		[]string{"result"},
	)

	PreKeyBundlesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prekey_bundles_issued_total",
			Help: "Total number of prekey bundle fetches.",
		},
		[]string{"result"},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of message send attempts.",
		},
		[]string{"result"},
	)

	MessagesDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_deleted_total",
			Help: "Total number of mailbox deletion requests.",
		},
		[]string{"result"},
	)

	SignedRequestChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signed_request_checks_total",
			Help: "Total number of signed request verifications.",
		},
		[]string{"result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		DeviceRegistrationsTotal,
		DeviceDeletionsTotal,
		PreKeyUploadsTotal,
		SignedPreKeyRotationsTotal,
		PreKeyBundlesIssuedTotal,
		MessagesSentTotal,
		MessagesDeletedTotal,
		SignedRequestChecksTotal,
	)
}
