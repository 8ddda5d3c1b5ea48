package world

import "time"

// InterpolationFactor returns how far along the interpolation window the
// world is at now: clamp(elapsed/window, 0, 1). A zero or negative window, or
// a world that has never been updated, snaps to 1.
func InterpolationFactor(now, last time.Time, windowMS float64) float64 {
	if windowMS <= 0 || last.IsZero() {
		return 1
	}
	elapsed := float64(now.Sub(last)) / float64(time.Millisecond)
	f := elapsed / windowMS
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f
}

// Interpolate moves every interpolated entity (local player, visible
// players, bots) to PrevPos + (ServerPos-PrevPos)*f. Static objects are not
// interpolated. It returns the factor used.
func (s *State) Interpolate(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := InterpolationFactor(now, s.lastUpdate, s.cfg.InterpolationMS)
	s.player.InterpPos = Lerp(s.player.PrevPos, s.player.ServerPos, f)
	for _, p := range s.players {
		p.InterpPos = Lerp(p.PrevPos, p.ServerPos, f)
	}
	for _, b := range s.bots {
		b.InterpPos = Lerp(b.PrevPos, b.ServerPos, f)
	}
	return f
}
