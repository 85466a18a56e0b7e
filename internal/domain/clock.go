package domain

import "github.com/jonboulle/clockwork"

// clock stamps assembled tables. Tests freeze it via SetClock so exported
// metadata headers are reproducible.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used by Assemble. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
