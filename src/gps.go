package raspiaprs

import (
	"sync"
	"time"
)

const DefaultGPSMaxAge = 30 * time.Second

// SkyView is the satellite count from the most recent report.
type SkyView struct {
	Used    int
	Visible int
}

// fixStore holds the latest fix and satellite view published by a GPS
// reader goroutine, for the scheduler to pick up without waiting.
type fixStore struct {
	mu     sync.Mutex
	maxAge time.Duration

	fix   PositionSample
	fixAt time.Time

	sky   SkyView
	skyAt time.Time
}

func newFixStore(maxAge time.Duration) *fixStore {
	if maxAge <= 0 {
		maxAge = DefaultGPSMaxAge
	}
	return &fixStore{maxAge: maxAge}
}

func (f *fixStore) setFix(p PositionSample, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fix = p
	f.fixAt = at
}

func (f *fixStore) setSky(v SkyView, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sky = v
	f.skyAt = at
}

func (f *fixStore) fresh(at, now time.Time) bool {
	return !at.IsZero() && now.Sub(at) <= f.maxAge
}

// Position returns the latest fix if it is recent enough.
func (f *fixStore) Position(now time.Time) (PositionSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.fresh(f.fixAt, now) || f.fix.IsZero() {
		return PositionSample{}, false
	}
	return f.fix, true
}

// Satellites returns the latest satellite view if it is recent enough.
func (f *fixStore) Satellites(now time.Time) (SkyView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.fresh(f.skyAt, now) {
		return SkyView{}, false
	}
	return f.sky, true
}

// deriveMotion fills in speed and course from the previous fix, for
// receivers that only give us position.
func deriveMotion(prev, cur PositionSample) PositionSample {
	if prev.IsZero() || cur.IsZero() || prev.Time.IsZero() || !cur.Time.After(prev.Time) {
		return cur
	}

	var dt = cur.Time.Sub(prev.Time).Seconds()
	var dist = distanceMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)

	cur.Speed = dist / dt
	if dist > 0 {
		cur.Course = bearingDegrees(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
	}

	return cur
}
