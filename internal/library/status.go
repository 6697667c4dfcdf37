package library

// validTransitions maps each state to the states it may move to.
// Any active state may fail; terminal states stay put.
var validTransitions = map[ContentState][]ContentState{
	StatePending:     {StateDownloading, StateFailed},
	StateDownloading: {StateRelocating, StateFailed},
	StateRelocating:  {StateTranscoding, StateFailed},
	StateTranscoding: {StateSubtitling, StateFailed},
	StateSubtitling:  {StateReady, StateFailed},
	StateReady:       {},
	StateFailed:      {},
}

// CanTransitionTo reports whether the state machine allows moving
// from s to next.
func (s ContentState) CanTransitionTo(next ContentState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s ContentState) Terminal() bool {
	return len(validTransitions[s]) == 0
}
