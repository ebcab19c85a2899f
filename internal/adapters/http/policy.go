package http

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	KickSubscriber
)

// Policy decides what happens to an event-stream subscriber that cannot keep up.
type Policy interface {
	OnBackPressure(subscriber string) BackpressureAction
}

// KickPolicy disconnects slow subscribers; the UI reconnects and re-reads state.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(string) BackpressureAction { return KickSubscriber }

// DropPolicy skips the event for slow subscribers and keeps them attached.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(string) BackpressureAction { return DropEvent }
