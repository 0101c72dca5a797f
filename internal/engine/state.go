package engine

// State is the synchronization state of one list.
type State int

const (
	Idle        State = iota // no batch in flight
	Building                 // computing the next batch
	AwaitingAck              // batch handed to the transport, not yet confirmed
)

var StatusTextMap = map[State]string{
	Idle:        "idle",
	Building:    "building",
	AwaitingAck: "awaiting_ack",
}

func (s State) String() string {
	if t, ok := StatusTextMap[s]; ok {
		return t
	}
	return "unknown"
}
