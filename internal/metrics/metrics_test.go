package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/driftwatch/internal/fim"
)

func TestRecordEventLabels(t *testing.T) {
	m := New()

	m.RecordEvent(fim.Modified, true)
	m.RecordEvent(fim.Modified, true)
	m.RecordEvent(fim.Created, false)

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("modified", ClassCritical)); got != 2 {
		t.Errorf("critical modified count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("created", ClassOrdinary)); got != 1 {
		t.Errorf("ordinary created count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("deleted", ClassCritical)); got != 0 {
		t.Errorf("untouched series = %v, want 0", got)
	}
}

func TestObserveScan(t *testing.T) {
	m := New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveScan(fim.ScanStats{Files: 120, Dirs: 14, Duration: 2 * time.Second}, at)

	if got := testutil.ToFloat64(m.filesMonitored); got != 120 {
		t.Errorf("files monitored = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.dirsMonitored); got != 14 {
		t.Errorf("dirs monitored = %v, want 14", got)
	}
	if got := testutil.ToFloat64(m.lastScanTime); got != float64(at.Unix()) {
		t.Errorf("last scan timestamp = %v, want %v", got, at.Unix())
	}
	if got := testutil.ToFloat64(m.scansPartial); got != 0 {
		t.Errorf("partial count = %v, want 0", got)
	}
}

func TestObserveScanPartial(t *testing.T) {
	m := New()

	m.ObserveScan(fim.ScanStats{Files: 10, Partial: true}, time.Now())
	m.ObserveScan(fim.ScanStats{Files: 90}, time.Now())

	if got := testutil.ToFloat64(m.scansPartial); got != 1 {
		t.Errorf("partial count = %v, want 1", got)
	}
}

func TestUpdateUptime(t *testing.T) {
	m := New()
	m.startTime = time.Now().Add(-10 * time.Second)
	m.UpdateUptime()

	if got := testutil.ToFloat64(m.agentUptime); got < 10 {
		t.Errorf("uptime = %v, want >= 10", got)
	}
}
