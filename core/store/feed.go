package store

import (
	"sync"
	"time"
)

// Snapshot is one change-feed event: the store's current full view of a
// report's prediction. Prediction is nil while no prediction row has landed
// yet, and ServerTime inside the record stays nil until resolution completes.
// Subscribers must tolerate both windows.
type Snapshot struct {
	ReportID   string
	Prediction *PredictionRecord
	EmittedAt  time.Time
}

// Feed fans committed store changes out to subscribers. Events for one
// report are emitted in commit order; when a slow subscriber's buffer
// fills, stale queued events for the same report collapse into the newest
// one, so the latest state per report always gets through.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]*FeedSubscription
	nextID int
}

type FeedSubscription struct {
	C    chan Snapshot
	id   int
	feed *Feed
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{subs: map[int]*FeedSubscription{}}
}

func (f *Feed) Subscribe(buffer int) *FeedSubscription {
	if buffer <= 0 {
		buffer = 64
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &FeedSubscription{C: make(chan Snapshot, buffer), id: f.nextID, feed: f}
	f.subs[sub.id] = sub
	return sub
}

func (s *FeedSubscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
	})
}

func (f *Feed) Emit(snap Snapshot) {
	if snap.EmittedAt.IsZero() {
		snap.EmittedAt = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		select {
		case sub.C <- snap:
		default:
			sub.coalesce(snap)
		}
	}
}

// coalesce makes room in a full buffer. Queued events for the same report
// are superseded by the new one; the oldest queued event is shed only when
// the burst spans all distinct reports.
func (s *FeedSubscription) coalesce(snap Snapshot) {
	queued := make([]Snapshot, 0, cap(s.C))
	drained := false
	for !drained {
		select {
		case ev := <-s.C:
			if ev.ReportID != snap.ReportID {
				queued = append(queued, ev)
			}
		default:
			drained = true
		}
	}
	if len(queued) == cap(s.C) {
		queued = queued[1:]
	}
	queued = append(queued, snap)
	for _, ev := range queued {
		select {
		case s.C <- ev:
		default:
			return
		}
	}
}
