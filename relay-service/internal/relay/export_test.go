package relay

import "time"

// SetClock replaces the id generator and clock used for shown notifications.
func (r *Relay) SetClock(newID func() string, now func() time.Time) {
	r.newID = newID
	r.now = now
}
