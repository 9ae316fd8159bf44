package controller

// Phase is the position of the reconciliation loop in the watch lifecycle.
type Phase int

const (
	// Priming is the initial listing, during which violations are batched.
	Priming Phase = iota
	// Streaming is steady state, during which violations are reported one by one.
	Streaming
)

func (p Phase) String() string {
	if p == Streaming {
		return "streaming"
	}
	return "priming"
}
