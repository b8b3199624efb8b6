package types

// Each entity's status is a closed enumeration with an explicit transition
// table. Anything not listed here is rejected at the service layer.

var signalTransitions = map[SignalStatus][]SignalStatus{
	SignalStatusActive: {SignalStatusAcknowledged, SignalStatusDismissed, SignalStatusActioned, SignalStatusExpired},
}

func SignalCanTransition(from, to SignalStatus) bool {
	for _, allowed := range signalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var windowTransitions = map[WindowStatus][]WindowStatus{
	WindowStatusUpcoming:     {WindowStatusActive, WindowStatusPassed, WindowStatusInvalidated, WindowStatusAcknowledged},
	WindowStatusActive:       {WindowStatusPassed, WindowStatusInvalidated, WindowStatusAcknowledged},
	WindowStatusAcknowledged: {WindowStatusPassed, WindowStatusInvalidated},
}

func WindowCanTransition(from, to WindowStatus) bool {
	for _, allowed := range windowTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var suggestionTransitions = map[SuggestionStatus][]SuggestionStatus{
	SuggestionStatusActive: {SuggestionStatusDismissed, SuggestionStatusAcknowledged, SuggestionStatusExpired, SuggestionStatusSuperseded},
}

func SuggestionCanTransition(from, to SuggestionStatus) bool {
	for _, allowed := range suggestionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusProposed:            {PlanStatusPendingConfirmation, PlanStatusApproved, PlanStatusRejected},
	PlanStatusPendingConfirmation: {PlanStatusApproved, PlanStatusRejected},
	PlanStatusApproved:            {PlanStatusApplied, PlanStatusRejected},
	PlanStatusApplied:             {PlanStatusRolledBack},
}

func PlanCanTransition(from, to PlanStatus) bool {
	for _, allowed := range planTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
