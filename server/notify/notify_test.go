package notify

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(title, body string) error {
	f.sent = append(f.sent, body)
	return nil
}

func TestBurstThreshold(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(logs.NewTestingLog(t), sender, Options{
		Threshold: 3,
		Interval:  30 * time.Second,
		Cooldown:  5 * time.Minute,
	})
	t0 := time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)
	clock := t0
	n.now = func() time.Time { return clock }

	// Two sightings inside the window: below threshold, nothing sent
	n.Sighting("bird", t0)
	n.Sighting("bird", t0.Add(5*time.Second))
	require.Empty(t, sender.sent)

	// Third sighting crosses the threshold
	clock = t0.Add(10 * time.Second)
	n.Sighting("bird", t0.Add(10*time.Second))
	require.Len(t, sender.sent, 1)
	require.Contains(t, sender.sent[0], "3 bird sightings")

	// Another burst inside the cooldown: suppressed
	clock = t0.Add(1 * time.Minute)
	for i := 0; i < 5; i++ {
		n.Sighting("bird", clock.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, sender.sent, 1)

	// After the cooldown, bursts notify again
	clock = t0.Add(10 * time.Minute)
	for i := 0; i < 3; i++ {
		n.Sighting("bird", clock.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, sender.sent, 2)
}

func TestSightingsOutsideWindowDontCount(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(logs.NewTestingLog(t), sender, Options{
		Threshold: 3,
		Interval:  30 * time.Second,
	})
	t0 := time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)
	clock := t0
	n.now = func() time.Time { return clock }

	// Three sightings spread over two minutes never have three inside any
	// 30 second window
	for i := 0; i < 3; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute)
		clock = ts
		n.Sighting("bird", ts)
	}
	require.Empty(t, sender.sent)
}
