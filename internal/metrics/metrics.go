package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAppended tracks stored radio events by event type.
	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiolink_events_appended_total",
			Help: "Radio events stored in the per-user pull queues, by type",
		},
		[]string{"type"},
	)

	// EventsCoalesced tracks appends suppressed by the dedup windows.
	EventsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiolink_events_coalesced_total",
			Help: "Radio event appends suppressed by coalescing",
		},
	)

	// PairingCodesIssued tracks successful pairing-code issuance.
	PairingCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiolink_pairing_codes_issued_total",
			Help: "Pairing codes issued to game servers",
		},
	)

	// PairingCodesRedeemed tracks successful code redemptions.
	PairingCodesRedeemed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiolink_pairing_codes_redeemed_total",
			Help: "Pairing codes redeemed for capability tokens",
		},
	)

	// TokenVerifications tracks token verification outcomes.
	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiolink_token_verifications_total",
			Help: "Capability token verifications by result",
		},
		[]string{"result"},
	)

	// RateLimitRejections tracks 429 responses by limiter scope.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiolink_ratelimit_rejections_total",
			Help: "Requests rejected by the fixed-window rate limiter, by scope",
		},
		[]string{"scope"},
	)

	// PushSubscribers tracks currently open push subscriptions.
	PushSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiolink_push_subscribers",
			Help: "Currently open push (SSE) subscriptions",
		},
	)

	// PushFramesDropped tracks frames dropped on slow subscriber channels.
	PushFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiolink_push_frames_dropped_total",
			Help: "Push frames dropped because a subscriber channel was full",
		},
	)
)
