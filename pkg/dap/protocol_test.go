package dap

import (
	"bytes"
	"errors"
	"testing"
)

func TestProtocolEncodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		infoID byte
		want   []byte
	}{
		{"Vendor ID", InfoVendorID, []byte{0x00, 0x01}},
		{"Product ID", InfoProductID, []byte{0x00, 0x02}},
		{"Serial Number", InfoSerialNum, []byte{0x00, 0x03}},
		{"Firmware Version", InfoFirmwareVer, []byte{0x00, 0x04}},
		{"Capabilities", InfoCapabilities, []byte{0x00, 0xF0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.EncodeInfo(tt.infoID)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		resp    []byte
		want    string
		wantErr bool
	}{
		{
			name: "valid vendor",
			resp: []byte{0x00, 0x04, 'T', 'e', 's', 't'},
			want: "Test",
		},
		{
			name: "NUL terminated",
			resp: []byte{0x00, 0x05, 'T', 'e', 's', 't', 0x00},
			want: "Test",
		},
		{
			name: "empty",
			resp: []byte{0x00, 0x00},
			want: "",
		},
		{
			name:    "too short",
			resp:    []byte{0x00},
			wantErr: true,
		},
		{
			name:    "wrong command",
			resp:    []byte{0x01, 0x04, 'T', 'e', 's', 't'},
			wantErr: true,
		},
		{
			name:    "incomplete string",
			resp:    []byte{0x00, 0x10, 'T', 'e', 's', 't'},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeInfo(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeInfo() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfoUint(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		resp    []byte
		want    uint32
		wantErr bool
	}{
		{"byte", []byte{0x00, 0x01, 0x13}, 0x13, false},
		{"halfword", []byte{0x00, 0x02, 0x00, 0x02}, 0x200, false},
		{"word", []byte{0x00, 0x04, 0x78, 0x56, 0x34, 0x12}, 0x12345678, false},
		{"bad length", []byte{0x00, 0x03, 0x01, 0x02, 0x03}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeInfoUint(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeInfoUint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DecodeInfoUint() = 0x%X, want 0x%X", got, tt.want)
			}
		})
	}
}

func TestProtocolEncodeConnect(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name string
		port byte
		want []byte
	}{
		{"Default", PortDefault, []byte{0x02, 0x00}},
		{"SWD", PortSWD, []byte{0x02, 0x01}},
		{"JTAG", PortJTAG, []byte{0x02, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.EncodeConnect(tt.port)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeConnect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeConnect(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		resp    []byte
		want    byte
		wantErr bool
	}{
		{name: "SWD connected", resp: []byte{0x02, 0x01}, want: PortSWD},
		{name: "connection failed", resp: []byte{0x02, 0x00}, wantErr: true},
		{name: "too short", resp: []byte{0x02}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeConnect(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeConnect() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeConnect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolSimpleCommands(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"disconnect", proto.EncodeDisconnect(), []byte{0x03}},
		{"reset target", proto.EncodeResetTarget(), []byte{0x0A}},
		{"host status on", proto.EncodeHostStatus(HostStatusConnect, true), []byte{0x01, 0x00, 0x01}},
		{"host status off", proto.EncodeHostStatus(HostStatusRunning, false), []byte{0x01, 0x01, 0x00}},
		{"clock 4MHz", proto.EncodeSetClock(4_000_000), []byte{0x11, 0x00, 0x09, 0x3D, 0x00}},
		{"swd configure", proto.EncodeSWDConfigure(1, false), []byte{0x13, 0x00}},
		{"swd configure data phase", proto.EncodeSWDConfigure(2, true), []byte{0x13, 0x05}},
		{"transfer configure", proto.EncodeTransferConfigure(2, 64, 0x100), []byte{0x04, 0x02, 0x40, 0x00, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got % X, want % X", tt.got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeStatus(t *testing.T) {
	proto := NewProtocol(64)

	if err := proto.DecodeSetClock([]byte{0x11, 0x00}); err != nil {
		t.Errorf("DecodeSetClock ok: %v", err)
	}
	if err := proto.DecodeSetClock([]byte{0x11, 0xFF}); err == nil {
		t.Error("DecodeSetClock should fail on error status")
	}
	if err := proto.DecodeSWJSequence([]byte{0x11, 0x00}); err == nil {
		t.Error("DecodeSWJSequence should reject wrong command ID")
	}
	if err := proto.DecodeResetTarget([]byte{0x0A, 0x00, 0x01}); err != nil {
		t.Errorf("DecodeResetTarget: %v", err)
	}
}

func TestProtocolEncodeSWJSequence(t *testing.T) {
	proto := NewProtocol(64)

	got, err := proto.EncodeSWJSequence(16, []byte{0x9E, 0xE7})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x12, 0x10, 0x9E, 0xE7}) {
		t.Errorf("got % X", got)
	}

	got, err = proto.EncodeSWJSequence(256, make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != 0 || len(got) != 34 {
		t.Errorf("256 bits encoded as count %d, len %d", got[1], len(got))
	}

	if _, err := proto.EncodeSWJSequence(0, nil); err == nil {
		t.Error("expected error for zero bits")
	}
	if _, err := proto.EncodeSWJSequence(20, []byte{0xFF}); err == nil {
		t.Error("expected error for short data")
	}
}

func TestTransferRequest(t *testing.T) {
	tests := []struct {
		name string
		tr   Transfer
		want byte
	}{
		{"DP read IDR", Transfer{Read: true, Addr: DPIDR}, 0x02},
		{"DP write abort", Transfer{Addr: DPAbort}, 0x00},
		{"DP write select", Transfer{Addr: DPSelect}, 0x08},
		{"DP read rdbuff", Transfer{Read: true, Addr: DPRDBuff}, 0x0E},
		{"AP write TAR", Transfer{AP: true, Addr: 0x04}, 0x05},
		{"AP read DRW", Transfer{AP: true, Read: true, Addr: 0x0C}, 0x0F},
		{"AP read IDR bank offset", Transfer{AP: true, Read: true, Addr: 0xFC}, 0x0F},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.Request(); got != tt.want {
				t.Errorf("Request() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestProtocolTransfer(t *testing.T) {
	proto := NewProtocol(64)
	transfers := []Transfer{
		{AP: true, Addr: 0x04, Value: 0x20000000},
		{AP: true, Read: true, Addr: 0x0C},
		{Read: true, Addr: DPRDBuff},
	}

	cmd := proto.EncodeTransfer(0, transfers)
	want := []byte{0x05, 0x00, 0x03, 0x05, 0x00, 0x00, 0x00, 0x20, 0x0F, 0x0E}
	if !bytes.Equal(cmd, want) {
		t.Fatalf("EncodeTransfer = % X, want % X", cmd, want)
	}

	resp := []byte{0x05, 0x03, AckOK, 0x78, 0x56, 0x34, 0x12, 0xEF, 0xBE, 0xAD, 0xDE}
	vals, err := proto.DecodeTransfer(resp, transfers)
	if err != nil {
		t.Fatalf("DecodeTransfer: %v", err)
	}
	if len(vals) != 2 || vals[0] != 0x12345678 || vals[1] != 0xDEADBEEF {
		t.Errorf("values = %X", vals)
	}
}

func TestProtocolTransferFault(t *testing.T) {
	proto := NewProtocol(64)
	transfers := []Transfer{
		{AP: true, Read: true, Addr: 0x0C},
		{AP: true, Read: true, Addr: 0x0C},
	}

	resp := []byte{0x05, 0x01, AckFault, 0x01, 0x00, 0x00, 0x00}
	vals, err := proto.DecodeTransfer(resp, transfers)

	var te *TransferError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransferError", err)
	}
	if te.Ack != AckFault || te.Index != 1 || !te.Fault() {
		t.Errorf("TransferError = %+v", te)
	}
	if len(vals) != 1 || vals[0] != 1 {
		t.Errorf("completed values = %X", vals)
	}
}

func TestProtocolTransferBlock(t *testing.T) {
	proto := NewProtocol(64)
	tr := Transfer{AP: true, Addr: 0x0C}

	cmd := proto.EncodeTransferBlock(0, tr, 2, []uint32{1, 2, 3})
	want := []byte{0x06, 0x00, 0x02, 0x00, 0x0D, 1, 0, 0, 0, 2, 0, 0, 0}
	if !bytes.Equal(cmd, want) {
		t.Fatalf("EncodeTransferBlock = % X, want % X", cmd, want)
	}

	rd := Transfer{AP: true, Read: true, Addr: 0x0C}
	resp := []byte{0x06, 0x02, 0x00, AckOK, 0xAA, 0, 0, 0, 0xBB, 0, 0, 0}
	vals, err := proto.DecodeTransferBlock(resp, rd, 2)
	if err != nil || len(vals) != 2 || vals[1] != 0xBB {
		t.Errorf("DecodeTransferBlock = %X, %v", vals, err)
	}

	if _, err := proto.DecodeTransferBlock([]byte{0x06, 0x01, 0x00, AckWait, 0xAA, 0, 0, 0}, rd, 2); err == nil {
		t.Error("expected error for WAIT")
	}
}

func TestAckString(t *testing.T) {
	tests := []struct {
		ack  byte
		want string
	}{
		{AckOK, "OK"},
		{AckWait, "WAIT"},
		{AckFault, "FAULT"},
		{AckNoAck, "no ACK"},
		{AckProtocolError | AckOK, "SWD protocol error"},
		{AckMismatch | AckOK, "value mismatch"},
		{0x03, "ACK 0x03"},
	}
	for _, tt := range tests {
		if got := AckString(tt.ack); got != tt.want {
			t.Errorf("AckString(0x%02X) = %q, want %q", tt.ack, got, tt.want)
		}
	}
}

func TestMaxTransfers(t *testing.T) {
	if n := NewProtocol(64).MaxTransfers(); n != 12 {
		t.Errorf("MaxTransfers(64) = %d, want 12", n)
	}
	if n := NewProtocol(64).MaxBlockWords(); n != 14 {
		t.Errorf("MaxBlockWords(64) = %d, want 14", n)
	}
	if n := NewProtocol(1024).MaxTransfers(); n != 204 {
		t.Errorf("MaxTransfers(1024) = %d, want 204", n)
	}
}
