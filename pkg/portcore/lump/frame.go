// Package lump implements the LEGO UART Messaging Protocol: wire
// framing, checksum, the sync handshake, steady-state data exchange, and
// the per-device model a synced link produces.
package lump

import "fmt"

// MsgType is the two high bits of a LUMP header byte.
type MsgType uint8

const (
	MsgTypeSys  MsgType = 0 << 6
	MsgTypeCmd  MsgType = 1 << 6
	MsgTypeInfo MsgType = 2 << 6
	MsgTypeData MsgType = 3 << 6

	msgTypeMask uint8 = 0xC0
	sizeMask    uint8 = 0x38
	cmdMask     uint8 = 0x07
)

// SysCmd is the LUMP_MSG_CMD_MASK value for a MsgTypeSys header.
type SysCmd uint8

const (
	SysSync SysCmd = 0x0
	SysNack SysCmd = 0x2
	SysAck  SysCmd = 0x4
	SysEsc  SysCmd = 0x6
)

// Cmd is the LUMP_MSG_CMD_MASK value for a MsgTypeCmd header.
type Cmd uint8

const (
	CmdType    Cmd = 0x0
	CmdModes   Cmd = 0x1
	CmdSpeed   Cmd = 0x2
	CmdSelect  Cmd = 0x3
	CmdWrite   Cmd = 0x4
	CmdExtMode Cmd = 0x6
	CmdVersion Cmd = 0x7
)

// InfoKind is the byte that follows a MsgTypeInfo header.
type InfoKind uint8

const (
	InfoName    InfoKind = 0x00
	InfoRaw     InfoKind = 0x01
	InfoPct     InfoKind = 0x02
	InfoSi      InfoKind = 0x03
	InfoUnits   InfoKind = 0x04
	InfoMapping InfoKind = 0x05
	InfoFormat  InfoKind = 0x80

	// InfoModePlus8 is a flag ORed into the InfoKind byte, not a value of
	// its own: it indicates the real mode is 8 + the header's mode field.
	InfoModePlus8 InfoKind = 0x20
	infoKindMask  uint8    = 0x9F // InfoFormat | low five bits; clears ModePlus8
)

// DataType is the byte sent in an Info(Format) message's second field.
type DataType uint8

const (
	DataTypeI8  DataType = 0x00
	DataTypeI16 DataType = 0x01
	DataTypeI32 DataType = 0x02
	DataTypeF32 DataType = 0x03
)

// SizeCode is the 3-bit encoded payload length (bits 5..3 of the header).
type SizeCode uint8

const (
	Size1  SizeCode = 0
	Size2  SizeCode = 1
	Size4  SizeCode = 2
	Size8  SizeCode = 3
	Size16 SizeCode = 4
	Size32 SizeCode = 5
)

// PayloadLen returns the byte count a SizeCode encodes: 1<<code.
func (s SizeCode) PayloadLen() int {
	return 1 << uint(s&0x7)
}

// sizeCodeFor returns the smallest SizeCode whose PayloadLen equals n, or
// an error if n is not a valid LUMP payload length.
func sizeCodeFor(n int) (SizeCode, error) {
	for code := Size1; code <= Size32; code++ {
		if code.PayloadLen() == n {
			return code, nil
		}
	}
	return 0, fmt.Errorf("lump: invalid payload length %d", n)
}

// Header is the decoded form of a LUMP message's first byte.
type Header struct {
	Type      MsgType
	Size      SizeCode
	CmdOrMode uint8 // command id for Sys/Cmd; low 3 bits of mode for Info/Data
}

// Encode packs a Header back into its wire byte.
func (h Header) Encode() byte {
	return byte(h.Type) | byte(h.Size)<<3 | h.CmdOrMode&cmdMask
}

// DecodeHeader unpacks a wire header byte.
func DecodeHeader(b byte) Header {
	return Header{
		Type:      MsgType(b & msgTypeMask),
		Size:      SizeCode((b & sizeMask) >> 3),
		CmdOrMode: b & cmdMask,
	}
}

// Checksum computes 0xFF ^ header ^ (info byte, if present) ^ payload.
// infoByte is ignored (pass 0) for message types that don't carry one.
func Checksum(header byte, infoByte byte, payload []byte) byte {
	sum := byte(0xFF) ^ header ^ infoByte
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Message is a fully decoded LUMP frame: header plus payload (empty for
// Sys messages) and, for Info messages, the info-kind byte.
type Message struct {
	Header  Header
	Info    InfoKind // valid only when Header.Type == MsgTypeInfo
	Payload []byte
}

// DecodeMessage parses one complete message from the head of buf,
// returning the decoded message and the number of bytes consumed.
// ErrShortBuffer indicates the caller should wait for more bytes; any
// other error means the header or checksum was invalid and the caller
// should resync.
func DecodeMessage(buf []byte) (Message, int, error) {
	if len(buf) < 1 {
		return Message{}, 0, ErrShortBuffer
	}
	hb := buf[0]
	h := DecodeHeader(hb)

	if h.Type == MsgTypeSys {
		return Message{Header: h}, 1, nil
	}

	n := h.Size.PayloadLen()
	infoLen := 0
	if h.Type == MsgTypeInfo {
		infoLen = 1
	}
	total := 1 + infoLen + n + 1 // header + [info] + payload + checksum
	if len(buf) < total {
		return Message{}, 0, ErrShortBuffer
	}

	off := 1
	var ib byte
	var info InfoKind
	if h.Type == MsgTypeInfo {
		ib = buf[off]
		info = InfoKind(ib &^ byte(InfoModePlus8))
		off++
	}
	payload := append([]byte(nil), buf[off:off+n]...)
	off += n
	want := Checksum(hb, ib, payload)
	got := buf[off]
	if got != want {
		return Message{}, 0, fmt.Errorf("lump: checksum mismatch: got %#x want %#x", got, want)
	}

	msg := Message{Header: h, Payload: payload}
	if h.Type == MsgTypeInfo {
		msg.Info = info
		if ib&byte(InfoModePlus8) != 0 {
			msg.Header.CmdOrMode += 8
		}
	}
	return msg, total, nil
}

// ErrShortBuffer is returned by DecodeMessage when buf does not yet hold
// a complete message.
var ErrShortBuffer = fmt.Errorf("lump: short buffer")

// Encode re-serializes a decoded Message back to wire bytes, inverting
// DecodeMessage. For header types other than Info, CmdOrMode must
// already be in the 0..7 range expected on the wire.
func (m Message) Encode() ([]byte, error) {
	switch m.Header.Type {
	case MsgTypeSys:
		return EncodeSys(SysCmd(m.Header.CmdOrMode)), nil
	case MsgTypeCmd:
		return EncodeCmd(Cmd(m.Header.CmdOrMode), m.Payload)
	case MsgTypeInfo:
		return EncodeInfo(m.Header.CmdOrMode, m.Info, m.Payload)
	case MsgTypeData:
		return EncodeData(m.Header.CmdOrMode, m.Payload)
	default:
		return nil, fmt.Errorf("lump: unknown message type %#x", m.Header.Type)
	}
}

// EncodeSys builds the single-byte wire form of a system message.
func EncodeSys(cmd SysCmd) []byte {
	h := Header{Type: MsgTypeSys, Size: Size1, CmdOrMode: uint8(cmd)}
	return []byte{h.Encode()}
}

// EncodeCmd builds a Cmd message: header, payload, checksum.
func EncodeCmd(cmd Cmd, payload []byte) ([]byte, error) {
	code, err := sizeCodeFor(len(payload))
	if err != nil {
		return nil, err
	}
	h := Header{Type: MsgTypeCmd, Size: code, CmdOrMode: uint8(cmd)}
	hb := h.Encode()
	buf := make([]byte, 0, 2+len(payload))
	buf = append(buf, hb)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(hb, 0, payload))
	return buf, nil
}

// mode7 returns the low 3 bits of a mode number and whether ModePlus8
// must be set.
func mode7(mode uint8) (uint8, bool) {
	if mode >= 8 {
		return mode - 8, true
	}
	return mode, false
}

// EncodeInfo builds an Info message for the given mode.
func EncodeInfo(mode uint8, kind InfoKind, payload []byte) ([]byte, error) {
	code, err := sizeCodeFor(len(payload))
	if err != nil {
		return nil, err
	}
	low, plus8 := mode7(mode)
	h := Header{Type: MsgTypeInfo, Size: code, CmdOrMode: low}
	hb := h.Encode()
	ib := byte(kind)
	if plus8 {
		ib |= byte(InfoModePlus8)
	}
	buf := make([]byte, 0, 3+len(payload))
	buf = append(buf, hb, ib)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(hb, ib, payload))
	return buf, nil
}

// EncodeData builds a Data message for the given mode. Like the header's
// 3-bit CmdOrMode field itself, this only distinguishes mode%8 — a synced
// link has exactly one mode selected at a time (via Cmd(ExtMode) +
// Cmd(Select)), so the receiver already knows from that prior exchange
// whether "mode%8" means 0..7 or 8..15. There is no separate info byte on
// Data messages to carry InfoModePlus8.
func EncodeData(mode uint8, payload []byte) ([]byte, error) {
	code, err := sizeCodeFor(len(payload))
	if err != nil {
		return nil, err
	}
	low, _ := mode7(mode)
	h := Header{Type: MsgTypeData, Size: code, CmdOrMode: low}
	hb := h.Encode()
	buf := make([]byte, 0, 2+len(payload))
	buf = append(buf, hb)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(hb, 0, payload))
	return buf, nil
}
