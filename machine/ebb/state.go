package ebb

// State is the connection state of a Driver.
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
	Busy
	Faulted
)

var stateNames = []string{"disconnected", "connecting", "ready", "busy", "faulted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText allows State to be used directly in JSON status output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
