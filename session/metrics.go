package session

import "github.com/prometheus/client_golang/prometheus"

var (
	pmMetadataRefreshes     prometheus.Counter
	pmMetadataRefreshErrors prometheus.Counter

	pmMetadataRefreshPayloadSizes prometheus.Histogram
	pmMetadataRefreshDurations    prometheus.Histogram

	pmSubscribeRequests  prometheus.Counter
	pmSubscribeFailures  prometheus.Counter
	pmSubscribeDurations prometheus.Histogram

	pmMeasurementsReceived  prometheus.Counter
	pmBufferBlocksReceived  prometheus.Counter
	pmDecodeErrors          prometheus.Counter
	pmReconnectAttempts     prometheus.Counter
	pmConnectionsEstablished prometheus.Counter
	pmConnectionsTerminated prometheus.Counter
)

func init() {
	pmMetadataRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "metadata_refresh_total",
		Help:      "The number of metadata refreshes since program start",
	})

	pmMetadataRefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "metadata_refresh_errors_total",
		Help:      "The number of unsuccessful metadata refreshes since program start",
	})

	pmMetadataRefreshPayloadSizes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "metadata_refresh_payload_size_bytes",
		Help:      "The sizes of observed metadata payloads in bytes",
		Buckets:   prometheus.ExponentialBuckets(16384, 4.0, 8),
	})

	pmMetadataRefreshDurations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "metadata_refresh_duration_seconds",
		Help:      "The duration of metadata refreshes in seconds",
	})

	pmSubscribeRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "subscribe_requests_total",
		Help:      "The number of subscribe requests sent since program start",
	})

	pmSubscribeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "subscribe_failures_total",
		Help:      "The number of subscribe requests that received a Failed response",
	})

	pmSubscribeDurations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "subscribe_round_trip_seconds",
		Help:      "The time taken to send a subscribe request; the publisher's response is not included",
	})

	pmMeasurementsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "measurements_received_total",
		Help:      "The number of measurements decoded from data packets since program start",
	})

	pmBufferBlocksReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "buffer_blocks_received_total",
		Help:      "The number of buffer blocks received since program start",
	})

	pmDecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "decode_errors_total",
		Help:      "The number of data-packet decode failures since program start",
	})

	pmReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "reconnect_attempts_total",
		Help:      "The number of reconnect attempts made by the Connector since program start",
	})

	pmConnectionsEstablished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "connections_established_total",
		Help:      "The number of successful connections to a publisher since program start",
	})

	pmConnectionsTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sttp",
		Subsystem: "subscriber",
		Name:      "connections_terminated_total",
		Help:      "The number of connection terminations since program start",
	})

	prometheus.MustRegister(
		pmMetadataRefreshes, pmMetadataRefreshErrors, pmMetadataRefreshPayloadSizes, pmMetadataRefreshDurations,
		pmSubscribeRequests, pmSubscribeFailures, pmSubscribeDurations,
		pmMeasurementsReceived, pmBufferBlocksReceived, pmDecodeErrors,
		pmReconnectAttempts, pmConnectionsEstablished, pmConnectionsTerminated,
	)
}
