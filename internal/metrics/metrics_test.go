package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Contacts.Add(2)
	m.EventsWritten.Inc()
	m.RunDuration.Observe(0.5)

	if got := testutil.ToFloat64(m.Contacts); got != 2 {
		t.Errorf("contacts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsWritten); got != 1 {
		t.Errorf("events_written = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.RunDuration); n != 1 {
		t.Errorf("run_duration series = %d, want 1", n)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 5 {
		t.Errorf("registered %d metric families, want 5", len(mfs))
	}
}

func TestNop_IndependentRegistries(t *testing.T) {
	// Two Nop instances must not collide on registration.
	a, b := Nop(), Nop()
	a.Contacts.Inc()
	if got := testutil.ToFloat64(b.Contacts); got != 0 {
		t.Errorf("Nop instances share state: %v", got)
	}
}
