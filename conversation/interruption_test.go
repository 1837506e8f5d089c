package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestDetectInterruptionBackchannelFiltered(t *testing.T) {
	h := NewHandler(true)
	h.StartAssistantSpeech()

	if h.DetectInterruption("okay", true) {
		t.Error(`"okay" during assistant speech treated as interruption`)
	}
	if !h.DetectInterruption("wait, stop", true) {
		t.Error(`"wait, stop" during assistant speech not treated as interruption`)
	}
}

func TestDetectInterruptionFilterDisabled(t *testing.T) {
	h := NewHandler(false)
	h.StartAssistantSpeech()

	if !h.DetectInterruption("okay", true) {
		t.Error("backchannel filtered with filtering disabled")
	}
}

func TestDetectInterruptionRequiresBothSpeaking(t *testing.T) {
	h := NewHandler(true)

	if h.DetectInterruption("wait, stop", true) {
		t.Error("interruption detected while assistant quiet")
	}
	h.StartAssistantSpeech()
	if h.DetectInterruption("wait, stop", false) {
		t.Error("interruption detected while caller quiet")
	}
}

func TestIsBackchannel(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"okay", true},
		{"Okay", true},
		{"okay.", true},
		{"  uh huh ", true},
		{"mm hmm", true},
		{"yeah", true},
		{"okay but actually wait", false},
		{"wait, stop", false},
		{"no that is wrong", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isBackchannel(tt.text); got != tt.want {
			t.Errorf("isBackchannel(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestOnInterruptionCallbackFires(t *testing.T) {
	h := NewHandler(true)
	h.StartAssistantSpeech()

	var wg sync.WaitGroup
	wg.Add(1)
	h.OnInterruption(func() { wg.Done() })

	if !h.DetectInterruption("stop talking", true) {
		t.Fatal("interruption not detected")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestOnInterruptionCallbackPanicIsContained(t *testing.T) {
	h := NewHandler(true)
	h.StartAssistantSpeech()
	h.OnInterruption(func() { panic("boom") })

	if !h.DetectInterruption("stop", true) {
		t.Fatal("interruption not detected")
	}
	// Give the goroutine a moment; a leaked panic would fail the test
	// process.
	time.Sleep(50 * time.Millisecond)
}

func TestShouldStopSpeakingAdaptiveThreshold(t *testing.T) {
	h := NewHandler(false)
	base := time.Now()
	h.now = func() time.Time { return base }
	h.StartAssistantSpeech()

	if !h.ShouldStopSpeaking(600 * time.Millisecond) {
		t.Error("sustained interruption above 500ms did not stop speech")
	}
	if h.ShouldStopSpeaking(300 * time.Millisecond) {
		t.Error("300ms interruption stopped speech without frequent history")
	}

	// Four interruptions inside the window lower the threshold to 200ms.
	for i := 0; i < 4; i++ {
		if !h.DetectInterruption("stop", true) {
			t.Fatal("interruption not detected")
		}
	}
	if !h.ShouldStopSpeaking(300 * time.Millisecond) {
		t.Error("300ms interruption did not stop speech with frequent history")
	}
	if h.ShouldStopSpeaking(150 * time.Millisecond) {
		t.Error("150ms interruption stopped speech")
	}
}

func TestStatsAndRing(t *testing.T) {
	h := NewHandler(false)
	base := time.Now()
	h.now = func() time.Time { return base }
	h.StartAssistantSpeech()

	for i := 0; i < 15; i++ {
		offset := time.Duration(i) * 100 * time.Millisecond
		h.now = func() time.Time { return base.Add(offset) }
		h.DetectInterruption("stop", true)
	}

	stats := h.Stats()
	if stats.Total != recordCapacity {
		t.Errorf("Total = %d, want %d", stats.Total, recordCapacity)
	}
	if stats.AverageSpeechDuration <= 0 {
		t.Error("AverageSpeechDuration not positive")
	}
	if stats.RecentRate <= 0 {
		t.Error("RecentRate not positive")
	}

	h.Reset()
	if got := h.Stats().Total; got != 0 {
		t.Errorf("Total after Reset = %d, want 0", got)
	}
	if h.IsAssistantSpeaking() {
		t.Error("assistant still speaking after Reset")
	}
}
