package agent

import "testing"

func TestPipelineStatsSnapshot(t *testing.T) {
	s := newPipelineStats("demo")
	s.addRecv(10)
	s.addDroppedQueueFull(2)
	s.addSentEvents(8)
	s.addSentBatches(1)
	s.recordOk()

	snap := s.snapshot(3)
	if snap.Recv != 10 || snap.DroppedQueueFull != 2 || snap.SentEvents != 8 || snap.SentBatches != 1 {
		t.Fatalf("unexpected snapshot counters: %+v", snap)
	}
	if snap.Buffer != 3 {
		t.Fatalf("expected buffer 3, got %d", snap.Buffer)
	}
	if snap.LastOk.IsZero() {
		t.Fatalf("expected last_ok to be set after recordOk")
	}
	if snap.LastErr != "" {
		t.Fatalf("expected empty last_err, got %q", snap.LastErr)
	}
}

func TestPipelineStatsRecordErrClearsOnOk(t *testing.T) {
	s := newPipelineStats("demo")
	s.recordErr("boom")
	if snap := s.snapshot(0); snap.LastErr != "boom" {
		t.Fatalf("expected last_err=boom, got %q", snap.LastErr)
	}
	s.recordOk()
	if snap := s.snapshot(0); snap.LastErr != "" {
		t.Fatalf("expected last_err cleared after recordOk, got %q", snap.LastErr)
	}
}

func TestPipelineStatsSetState(t *testing.T) {
	s := newPipelineStats("demo")
	s.setState(StateRunning)
	if snap := s.snapshot(0); snap.State != string(StateRunning) {
		t.Fatalf("expected state running, got %q", snap.State)
	}
}
