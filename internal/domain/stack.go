package domain

// StackType distinguishes the two deployment kinds Portainer tracks.
// The numeric values are the ones the remote API uses.
type StackType int

const (
	StackTypeSwarm   StackType = 1
	StackTypeCompose StackType = 2
)

// String returns the path segment the remote API uses for the kind.
func (t StackType) String() string {
	switch t {
	case StackTypeSwarm:
		return "swarm"
	case StackTypeCompose:
		return "standalone"
	default:
		return "unknown"
	}
}

// EnvEntry is a single stack environment variable. Order matters: the
// remote system persists the list verbatim.
type EnvEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Stack is the remote-side record of a deployed stack.
type Stack struct {
	ID         int        `json:"Id"`
	Name       string     `json:"Name"`
	EndpointID int        `json:"EndpointId"`
	SwarmID    string     `json:"SwarmId,omitempty"`
	Env        []EnvEntry `json:"Env"`
	Type       StackType  `json:"Type,omitempty"`
}

// FindStack returns the stack whose name equals name exactly, or nil.
func FindStack(stacks []Stack, name string) *Stack {
	for i := range stacks {
		if stacks[i].Name == name {
			return &stacks[i]
		}
	}
	return nil
}
