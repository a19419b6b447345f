package lump

import (
	"bytes"
	"testing"
)

// payloadFor returns a deterministic payload of the given size, distinct
// per size so accidental zero-filling can't mask a bug.
func payloadFor(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + n)
	}
	return buf
}

// TestCodecRoundTrip checks decode(encode(msg)) == msg for every
// (type, size_code, cmd_or_mode, payload) combination the wire format
// can represent.
func TestCodecRoundTrip(t *testing.T) {
	sizes := []SizeCode{Size1, Size2, Size4, Size8, Size16, Size32}

	t.Run("sys", func(t *testing.T) {
		for _, cmd := range []SysCmd{SysSync, SysNack, SysAck, SysEsc} {
			wire := EncodeSys(cmd)
			msg, n, err := DecodeMessage(wire)
			if err != nil {
				t.Fatalf("Sys(%#x): decode error: %v", cmd, err)
			}
			if n != len(wire) {
				t.Fatalf("Sys(%#x): consumed %d, want %d", cmd, n, len(wire))
			}
			if msg.Header.Type != MsgTypeSys || Cmd(msg.Header.CmdOrMode) != Cmd(cmd) {
				t.Fatalf("Sys(%#x): round-tripped to %+v", cmd, msg)
			}
		}
	})

	t.Run("cmd", func(t *testing.T) {
		for _, cmd := range []Cmd{CmdType, CmdModes, CmdSpeed, CmdSelect, CmdWrite, CmdExtMode, CmdVersion} {
			for _, size := range sizes {
				payload := payloadFor(size.PayloadLen())
				wire, err := EncodeCmd(cmd, payload)
				if err != nil {
					t.Fatalf("Cmd(%#x, len=%d): encode error: %v", cmd, len(payload), err)
				}
				msg, n, err := DecodeMessage(wire)
				if err != nil {
					t.Fatalf("Cmd(%#x, len=%d): decode error: %v", cmd, len(payload), err)
				}
				if n != len(wire) {
					t.Fatalf("Cmd(%#x): consumed %d, want %d", cmd, n, len(wire))
				}
				if Cmd(msg.Header.CmdOrMode) != cmd || !bytes.Equal(msg.Payload, payload) {
					t.Fatalf("Cmd(%#x, len=%d) round-tripped to %+v", cmd, len(payload), msg)
				}
				reenc, err := msg.Encode()
				if err != nil || !bytes.Equal(reenc, wire) {
					t.Fatalf("Cmd(%#x): Message.Encode() = %x (err %v), want %x", cmd, reenc, err, wire)
				}
			}
		}
	})

	t.Run("info", func(t *testing.T) {
		kinds := []InfoKind{InfoName, InfoRaw, InfoPct, InfoSi, InfoUnits, InfoMapping, InfoFormat}
		for _, kind := range kinds {
			for mode := uint8(0); mode < 16; mode++ {
				for _, size := range sizes {
					payload := payloadFor(size.PayloadLen())
					wire, err := EncodeInfo(mode, kind, payload)
					if err != nil {
						t.Fatalf("Info(mode=%d,%#x): encode error: %v", mode, kind, err)
					}
					msg, n, err := DecodeMessage(wire)
					if err != nil {
						t.Fatalf("Info(mode=%d,%#x): decode error: %v", mode, kind, err)
					}
					if n != len(wire) {
						t.Fatalf("Info(mode=%d): consumed %d, want %d", mode, n, len(wire))
					}
					if msg.Header.CmdOrMode != mode || msg.Info != kind || !bytes.Equal(msg.Payload, payload) {
						t.Fatalf("Info(mode=%d,%#x) round-tripped to mode=%d info=%#x payload=%x",
							mode, kind, msg.Header.CmdOrMode, msg.Info, msg.Payload)
					}
					reenc, err := msg.Encode()
					if err != nil || !bytes.Equal(reenc, wire) {
						t.Fatalf("Info(mode=%d,%#x): Message.Encode() = %x (err %v), want %x", mode, kind, reenc, err, wire)
					}
				}
			}
		}
	})

	t.Run("data", func(t *testing.T) {
		for mode := uint8(0); mode < 16; mode++ {
			for _, size := range sizes {
				payload := payloadFor(size.PayloadLen())
				wire, err := EncodeData(mode, payload)
				if err != nil {
					t.Fatalf("Data(mode=%d): encode error: %v", mode, err)
				}
				msg, n, err := DecodeMessage(wire)
				if err != nil {
					t.Fatalf("Data(mode=%d): decode error: %v", mode, err)
				}
				if n != len(wire) {
					t.Fatalf("Data(mode=%d): consumed %d, want %d", mode, n, len(wire))
				}
				if msg.Header.CmdOrMode != mode%8 || !bytes.Equal(msg.Payload, payload) {
					t.Fatalf("Data(mode=%d) round-tripped to %+v", mode, msg)
				}
			}
		}
	})
}

func TestDecodeMessageShortBuffer(t *testing.T) {
	wire, _ := EncodeCmd(CmdType, []byte{0x26})
	for n := 0; n < len(wire); n++ {
		if _, _, err := DecodeMessage(wire[:n]); err != ErrShortBuffer {
			t.Fatalf("DecodeMessage(%d of %d bytes) = %v, want ErrShortBuffer", n, len(wire), err)
		}
	}
}

func TestDecodeMessageBadChecksum(t *testing.T) {
	wire, _ := EncodeCmd(CmdType, []byte{0x26})
	wire[len(wire)-1] ^= 0xFF
	if _, _, err := DecodeMessage(wire); err == nil {
		t.Fatalf("DecodeMessage with corrupted checksum did not error")
	}
}

func TestEncodeInvalidPayloadLength(t *testing.T) {
	if _, err := EncodeCmd(CmdType, make([]byte, 3)); err == nil {
		t.Fatalf("EncodeCmd accepted an invalid payload length")
	}
}

// A BOOST Color-Distance Sensor's Cmd(Type) message, as it appears on
// the wire.
func TestBoostColorDistanceTypeMessage(t *testing.T) {
	wire, err := EncodeCmd(CmdType, []byte{0x25})
	if err != nil {
		t.Fatalf("EncodeCmd: %v", err)
	}
	want := []byte{0x40, 0x25, 0x9A}
	if !bytes.Equal(wire, want) {
		t.Fatalf("Cmd(Type, 0x25) = %x, want %x", wire, want)
	}
	msg, _, err := DecodeMessage(wire)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if Cmd(msg.Header.CmdOrMode) != CmdType || msg.Payload[0] != 0x25 {
		t.Fatalf("decoded %+v", msg)
	}
}

// Selecting mode 2 on a LUMP motor produces the exact wire bytes
// 46 00 B9 43 02 BE (a Cmd(ExtMode, 0) followed by a Cmd(Select, 2)).
func TestMotorModeSwitchWireBytes(t *testing.T) {
	extMode, err := EncodeCmd(CmdExtMode, []byte{0x00})
	if err != nil {
		t.Fatalf("EncodeCmd(ExtMode): %v", err)
	}
	if want := []byte{0x46, 0x00, 0xB9}; !bytes.Equal(extMode, want) {
		t.Fatalf("Cmd(ExtMode, 0) = %x, want %x", extMode, want)
	}

	selectMode, err := EncodeCmd(CmdSelect, []byte{0x02})
	if err != nil {
		t.Fatalf("EncodeCmd(Select): %v", err)
	}
	if want := []byte{0x43, 0x02, 0xBE}; !bytes.Equal(selectMode, want) {
		t.Fatalf("Cmd(Select, 2) = %x, want %x", selectMode, want)
	}

	wire := append(append([]byte{}, extMode...), selectMode...)
	want := []byte{0x46, 0x00, 0xB9, 0x43, 0x02, 0xBE}
	if !bytes.Equal(wire, want) {
		t.Fatalf("mode switch wire = %x, want %x", wire, want)
	}
}
