// Package prometheus provides Prometheus metrics for call handling.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "callbridge"

var (
	// callsActive is a gauge of calls currently in progress.
	callsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of calls currently in progress",
		},
	)

	// callsTotal is a counter of handled calls.
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of handled calls",
		},
		[]string{"status"}, // status: completed, failed, rejected
	)

	// callDuration is a histogram of call duration in seconds.
	callDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Histogram of call duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// collaboratorRequestDuration is a histogram of ASR/LLM/TTS call
	// duration. Sub-second latency is what keeps a call conversational,
	// hence the tight buckets.
	collaboratorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_request_duration_seconds",
			Help:      "Duration of ASR, LLM, and TTS requests in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind", "provider"}, // kind: asr, llm, tts
	)

	// collaboratorRequestsTotal is a counter of ASR/LLM/TTS requests.
	collaboratorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_requests_total",
			Help:      "Total number of ASR, LLM, and TTS requests",
		},
		[]string{"kind", "provider", "status"}, // status: success, error
	)

	// turnsTotal is a counter of completed conversational turns.
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of completed conversational turns",
		},
	)

	// interruptionsTotal is a counter of detected barge-ins.
	interruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of detected caller interruptions",
		},
	)

	// audioFramesTotal is a counter of processed audio frames.
	audioFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_total",
			Help:      "Total number of processed audio frames",
		},
		[]string{"direction"}, // direction: inbound, outbound
	)

	// audioFramesDroppedTotal is a counter of frames dropped by the
	// bounded inbound queue.
	audioFramesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total number of inbound audio frames dropped under backpressure",
		},
	)

	// vadDetectionsTotal is a counter of voice-activity decisions.
	vadDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_detections_total",
			Help:      "Total number of voice activity decisions",
		},
		[]string{"result"}, // result: speech, silence
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		callsActive,
		callsTotal,
		callDuration,
		collaboratorRequestDuration,
		collaboratorRequestsTotal,
		turnsTotal,
		interruptionsTotal,
		audioFramesTotal,
		audioFramesDroppedTotal,
		vadDetectionsTotal,
	}
)

// RecordCallStart records a call entering progress.
func RecordCallStart() {
	callsActive.Inc()
}

// RecordCallEnd records a call leaving progress.
func RecordCallEnd(status string, durationSeconds float64) {
	callsActive.Dec()
	callsTotal.WithLabelValues(status).Inc()
	callDuration.Observe(durationSeconds)
}

// RecordCallRejected records a call refused before a pipeline started.
func RecordCallRejected() {
	callsTotal.WithLabelValues("rejected").Inc()
}

// RecordCollaboratorRequest records one ASR, LLM, or TTS request.
func RecordCollaboratorRequest(kind, provider, status string, durationSeconds float64) {
	collaboratorRequestDuration.WithLabelValues(kind, provider).Observe(durationSeconds)
	collaboratorRequestsTotal.WithLabelValues(kind, provider, status).Inc()
}

// RecordTurn records a completed conversational turn.
func RecordTurn() {
	turnsTotal.Inc()
}

// RecordInterruption records a detected barge-in.
func RecordInterruption() {
	interruptionsTotal.Inc()
}

// RecordAudioFrame records one processed audio frame.
func RecordAudioFrame(direction string) {
	audioFramesTotal.WithLabelValues(direction).Inc()
}

// RecordAudioFrameDropped records an inbound frame dropped under
// backpressure.
func RecordAudioFrameDropped() {
	audioFramesDroppedTotal.Inc()
}

// RecordVADDetection records one voice-activity decision.
func RecordVADDetection(speech bool) {
	if speech {
		vadDetectionsTotal.WithLabelValues("speech").Inc()
	} else {
		vadDetectionsTotal.WithLabelValues("silence").Inc()
	}
}
