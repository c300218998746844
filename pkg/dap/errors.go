package dap

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned for register access before Connect.
var ErrNotConnected = errors.New("dap: not connected")

// TransferError reports a DAP_Transfer that stopped early.
type TransferError struct {
	Ack   byte
	Index int // number of transfers completed
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %d failed: %s", e.Index, AckString(e.Ack))
}

// Fault reports whether the target answered FAULT.
func (e *TransferError) Fault() bool {
	return e.Ack&0x07 == AckFault
}

// AckString names an ACK value.
func AckString(ack byte) string {
	switch {
	case ack&AckProtocolError != 0:
		return "SWD protocol error"
	case ack&AckMismatch != 0:
		return "value mismatch"
	}
	switch ack & 0x07 {
	case AckOK:
		return "OK"
	case AckWait:
		return "WAIT"
	case AckFault:
		return "FAULT"
	case AckNoAck:
		return "no ACK"
	}
	return fmt.Sprintf("ACK 0x%02X", ack)
}
