package throughput

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vitalis-app/probe/internal/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDeriveRates_FirstCallIsZero(t *testing.T) {
	tr := NewTracker()
	up, down := tr.DeriveRates(models.NetworkCounters{RxBytes: 1 << 40, TxBytes: 1 << 30}, t0)
	assert.Zero(t, up)
	assert.Zero(t, down)
}

func TestDeriveRates_SecondCall(t *testing.T) {
	tr := NewTracker()
	tr.DeriveRates(models.NetworkCounters{RxBytes: 1000, TxBytes: 500}, t0)

	up, down := tr.DeriveRates(models.NetworkCounters{RxBytes: 1000 + 4000, TxBytes: 500 + 1000}, t0.Add(4*time.Second))
	assert.InDelta(t, 250.0, up, 1e-9)
	assert.InDelta(t, 1000.0, down, 1e-9)
}

func TestDeriveRates_FractionalSeconds(t *testing.T) {
	tr := NewTracker()
	tr.DeriveRates(models.NetworkCounters{}, t0)

	up, down := tr.DeriveRates(models.NetworkCounters{RxBytes: 300, TxBytes: 150}, t0.Add(1500*time.Millisecond))
	assert.InDelta(t, 100.0, up, 1e-9)
	assert.InDelta(t, 200.0, down, 1e-9)
}

func TestDeriveRates_NonIncreasingTime(t *testing.T) {
	tests := []struct {
		name string
		next time.Time
	}{
		{"same instant", t0},
		{"clock rollback", t0.Add(-time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.DeriveRates(models.NetworkCounters{RxBytes: 10, TxBytes: 10}, t0)

			up, down := tr.DeriveRates(models.NetworkCounters{RxBytes: 9000, TxBytes: 9000}, tt.next)
			assert.Zero(t, up)
			assert.Zero(t, down)

			// The snapshot was replaced, so the next delta is against it.
			up, down = tr.DeriveRates(models.NetworkCounters{RxBytes: 9100, TxBytes: 9050}, tt.next.Add(time.Second))
			assert.InDelta(t, 50.0, up, 1e-9)
			assert.InDelta(t, 100.0, down, 1e-9)
		})
	}
}

func TestDeriveRates_CounterResetClampsToZero(t *testing.T) {
	tr := NewTracker()
	tr.DeriveRates(models.NetworkCounters{RxBytes: 5000, TxBytes: 5000}, t0)

	up, down := tr.DeriveRates(models.NetworkCounters{RxBytes: 100, TxBytes: 7000}, t0.Add(2*time.Second))
	assert.InDelta(t, 1000.0, up, 1e-9)
	assert.Zero(t, down)
}

func TestTrackersAreIndependent(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	a.DeriveRates(models.NetworkCounters{RxBytes: 100}, t0)

	_, down := b.DeriveRates(models.NetworkCounters{RxBytes: 200}, t0.Add(time.Second))
	assert.Zero(t, down, "b has no baseline of its own")
}
