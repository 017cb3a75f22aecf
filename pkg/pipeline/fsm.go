package pipeline

import (
	"github.com/looplab/fsm"
)

// Pipeline states. NoFundsFound, Done and Fatal are terminal.
const (
	StateConnecting       = "CONNECTING"
	StateScanning         = "SCANNING"
	StateDecrypting       = "DECRYPTING"
	StateNoFundsFound     = "NO_FUNDS_FOUND"
	StateDisbursingNative = "DISBURSING_NATIVE"
	StateDisbursingToken  = "DISBURSING_TOKEN"
	StateDone             = "DONE"
	StateFatal            = "FATAL"
)

// Pipeline events.
const (
	EventScan           = "scan"
	EventDecrypt        = "decrypt"
	EventNoFunds        = "no_funds"
	EventDisburseNative = "disburse_native"
	EventDisburseToken  = "disburse_token"
	EventFinish         = "finish"
	EventFail           = "fail"
)

// newStateMachine builds the sweep state machine:
//
//	CONNECTING -> SCANNING -> DECRYPTING -> NO_FUNDS_FOUND
//	                                     -> DISBURSING_NATIVE -> DISBURSING_TOKEN -> DONE
//
// Every non-terminal state may move to FATAL.
func newStateMachine(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: EventScan, Src: []string{StateConnecting}, Dst: StateScanning},
			{Name: EventDecrypt, Src: []string{StateScanning}, Dst: StateDecrypting},
			{Name: EventNoFunds, Src: []string{StateDecrypting}, Dst: StateNoFundsFound},
			{Name: EventDisburseNative, Src: []string{StateDecrypting}, Dst: StateDisbursingNative},
			{Name: EventDisburseToken, Src: []string{StateDisbursingNative}, Dst: StateDisbursingToken},
			{Name: EventFinish, Src: []string{StateDisbursingToken}, Dst: StateDone},
			{
				Name: EventFail,
				Src: []string{
					StateConnecting,
					StateScanning,
					StateDecrypting,
					StateDisbursingNative,
					StateDisbursingToken,
				},
				Dst: StateFatal,
			},
		},
		callbacks,
	)
}

// IsTerminal reports whether no further transition leaves state.
func IsTerminal(state string) bool {
	switch state {
	case StateNoFundsFound, StateDone, StateFatal:
		return true
	}
	return false
}
