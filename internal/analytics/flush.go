package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/ivugurura/sonos-mux/internal/listeners"
)

type bucketState struct {
	mu sync.Mutex
	// keyed by interval ("MINUTE", "FIVE_MIN", "HOUR") and bucket start
	data map[string]map[time.Time]*ListenerBucket
}

func newBucketState() *bucketState {
	return &bucketState{
		data: map[string]map[time.Time]*ListenerBucket{
			"MINUTE":   {},
			"FIVE_MIN": {},
			"HOUR":     {},
		},
	}
}

var bucketDurations = []struct {
	key string
	dur time.Duration
}{
	{"MINUTE", time.Minute},
	{"FIVE_MIN", 5 * time.Minute},
	{"HOUR", time.Hour},
}

func (b *bucketState) addSample(now time.Time, active int, countries map[string]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range bucketDurations {
		start := now.Truncate(v.dur).UTC()
		m := b.data[v.key]
		bkt, ok := m[start]
		if !ok {
			bkt = &ListenerBucket{Interval: v.key, BucketStart: start, Countries: map[string]int{}}
			m[start] = bkt
		}
		if active > bkt.ActivePeak {
			bkt.ActivePeak = active
		}
		for c, n := range countries {
			bkt.Countries[c] += n
		}
	}
}

func (b *bucketState) accrueListenerMinutes(delta time.Duration, active int) {
	if active <= 0 || delta <= 0 {
		return
	}
	minutes := int(delta.Minutes() + 0.5)
	if minutes <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.data {
		for _, bkt := range m {
			bkt.ListenerMinutes += minutes * active
		}
	}
}

func (b *bucketState) drainReady(cutoff time.Time) []ListenerBucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ListenerBucket
	for _, v := range bucketDurations {
		m := b.data[v.key]
		for start, bkt := range m {
			if !start.Add(v.dur).After(cutoff) {
				out = append(out, *bkt)
				delete(m, start)
			}
		}
	}
	return out
}

// StartFlush launches a goroutine that periodically posts one
// output's listener sessions and rollup buckets to an ingest backend,
// pruning disconnected listeners from store once they've been
// reported. Returns a channel that, when closed, stops the loop.
func StartFlush(store *listeners.Store, outputID, ingestURL, apiKey string, flushEvery time.Duration) (stop chan struct{}) {
	if ingestURL == "" || flushEvery <= 0 {
		return nil
	}
	client := NewClient(ingestURL, apiKey)
	stop = make(chan struct{})
	bk := newBucketState()

	go func() {
		tick := time.NewTicker(flushEvery)
		defer tick.Stop()
		last := time.Now().UTC()

		for {
			select {
			case <-tick.C:
			case <-stop:
				return
			}

			now := time.Now().UTC()
			active, countries, sessions := collectSessions(store, outputID)
			bk.addSample(now, active, countries)
			bk.accrueListenerMinutes(now.Sub(last), active)
			last = now

			batch := IngestBatch{
				OutputID: outputID,
				Sessions: sessions,
				Buckets:  bk.drainReady(now.Add(-time.Second)),
			}
			_ = client.SendListenerBatch(context.Background(), batch)

			for _, l := range sessions {
				if l.EndedAt != nil {
					store.Remove(l.ID)
				}
			}
		}
	}()

	return stop
}

func collectSessions(store *listeners.Store, outputID string) (active int, countries map[string]int, sessions []ListenerSession) {
	countries = map[string]int{}
	for _, l := range store.AllByOutput(outputID) {
		if l.Active() {
			active++
			if l.Country != "" {
				countries[l.Country]++
			}
		}
		sessions = append(sessions, toSession(l))
	}
	return
}

func toSession(l *listeners.Listener) ListenerSession {
	s := ListenerSession{
		ID:         l.ID,
		StartedAt:  l.ConnectedAt,
		IPHash:     l.IPHash,
		UserAgent:  l.UserAgent,
		ClientType: l.ClientType,
		Country:    l.Country,
		Region:     l.Region,
		City:       l.City,
		Lat:        l.Lat,
		Lon:        l.Lon,
		TotalBytes: l.BytesSent.Load(),
	}
	if t := l.DisconnectedAt.Load(); t != nil {
		s.EndedAt = t
	}
	return s
}
