package fmc

import "fmt"

// State names the steps of the locked mass-erase sequence.
type State uint8

const (
	StateLocked State = iota
	StateOptionEraseUnlocking
	StateOptionErasing
	StateOptionEraseBusyPoll
	StateOptionEraseOk
	StateOptionEraseTimeout
	StateProgramUnlocking
	StateProgramWriting
	StateProgramBusyPoll
	StateDone
	StateProgramTimeout
)

var stateNames = map[State]string{
	StateLocked:               "Locked",
	StateOptionEraseUnlocking: "OptionEraseUnlocking",
	StateOptionErasing:        "OptionErasing",
	StateOptionEraseBusyPoll:  "OptionEraseBusyPoll",
	StateOptionEraseOk:        "OptionEraseOk",
	StateOptionEraseTimeout:   "OptionEraseTimeout",
	StateProgramUnlocking:     "ProgramUnlocking",
	StateProgramWriting:       "ProgramWriting",
	StateProgramBusyPoll:      "ProgramBusyPoll",
	StateDone:                 "Done",
	StateProgramTimeout:       "ProgramTimeout",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateOptionEraseTimeout, StateProgramTimeout:
		return true
	}
	return false
}

// StateHook observes state transitions of MassErase.
type StateHook func(State)
