package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCallLifecycle(t *testing.T) {
	before := testutil.ToFloat64(callsActive)

	RecordCallStart()
	if got := testutil.ToFloat64(callsActive); got != before+1 {
		t.Errorf("calls_active = %v, want %v", got, before+1)
	}

	RecordCallEnd("completed", 42.0)
	if got := testutil.ToFloat64(callsActive); got != before {
		t.Errorf("calls_active after end = %v, want %v", got, before)
	}
	if got := testutil.ToFloat64(callsTotal.WithLabelValues("completed")); got < 1 {
		t.Errorf("calls_total{completed} = %v, want >= 1", got)
	}
}

func TestRecordCollaboratorRequest(t *testing.T) {
	RecordCollaboratorRequest("asr", "whisper", "success", 0.3)
	got := testutil.ToFloat64(collaboratorRequestsTotal.WithLabelValues("asr", "whisper", "success"))
	if got < 1 {
		t.Errorf("collaborator_requests_total = %v, want >= 1", got)
	}
}

func TestRecordVADDetection(t *testing.T) {
	RecordVADDetection(true)
	RecordVADDetection(false)
	if got := testutil.ToFloat64(vadDetectionsTotal.WithLabelValues("speech")); got < 1 {
		t.Errorf("vad_detections_total{speech} = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(vadDetectionsTotal.WithLabelValues("silence")); got < 1 {
		t.Errorf("vad_detections_total{silence} = %v, want >= 1", got)
	}
}

func TestExporterServesMetrics(t *testing.T) {
	exporter := NewExporter(":0")

	RecordInterruption()
	RecordTurn()
	RecordAudioFrame("inbound")
	RecordAudioFrameDropped()

	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}

	for _, want := range []string{
		"callbridge_interruptions_total",
		"callbridge_turns_total",
		"callbridge_audio_frames_total",
		"callbridge_calls_active",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestExporterWithCustomRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	exporter := NewExporterWithRegistry(":0", reg)
	if exporter.Registry() != reg {
		t.Error("Registry() did not return the provided registry")
	}
}
