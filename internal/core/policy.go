package core

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose outbound queue was full
// during a fan-out.
type Policy interface {
	OnBackpressure(roomKey string, id ConnID) BackpressureAction
}

// KickSlowPolicy disconnects slow consumers so they cannot accumulate
// unbounded lag. This is the production default.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(roomKey string, id ConnID) BackpressureAction {
	return KickMember
}
