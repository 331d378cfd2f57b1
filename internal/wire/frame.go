package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/griffinplus/logsink/internal/constants"
)

// FrameType tags the variant carried in a block's payload (spec.md §3).
type FrameType uint32

const (
	FrameTypeStartMarker FrameType = iota + 1
	FrameTypeSetApplicationName
	FrameTypeAddSourceName
	FrameTypeAddLogLevelName
	FrameTypeClearLogViewer
	FrameTypeSaveSnapshot
	FrameTypeMessage
	FrameTypeMessageExtension
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeStartMarker:
		return "StartMarker"
	case FrameTypeSetApplicationName:
		return "SetApplicationName"
	case FrameTypeAddSourceName:
		return "AddSourceName"
	case FrameTypeAddLogLevelName:
		return "AddLogLevelName"
	case FrameTypeClearLogViewer:
		return "ClearLogViewer"
	case FrameTypeSaveSnapshot:
		return "SaveSnapshot"
	case FrameTypeMessage:
		return "Message"
	case FrameTypeMessageExtension:
		return "MessageExtension"
	default:
		return fmt.Sprintf("FrameType(%d)", uint32(t))
	}
}

// headerSize is the tag(4)+reserved(4) prefix of every 496-byte frame.
const headerSize = 8

// bodySize is the remaining space after the tag+reserved header.
const bodySize = constants.PayloadSize - headerSize

// Frame is implemented by every variant in spec.md §3.
type Frame interface {
	Type() FrameType
	encodeBody(dst []byte) error
}

// Encode serializes f into a fresh 496-byte payload image: a 4-byte tag,
// 4 reserved zero bytes, then the variant body. Unused trailing body
// bytes are left zero.
func Encode(f Frame) ([constants.PayloadSize]byte, error) {
	var buf [constants.PayloadSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Type()))
	if err := f.encodeBody(buf[headerSize:]); err != nil {
		return buf, err
	}
	return buf, nil
}

// Decode parses a 496-byte payload image back into its typed Frame.
func Decode(payload []byte) (Frame, error) {
	if len(payload) != constants.PayloadSize {
		return nil, fmt.Errorf("wire: decode: payload must be %d bytes, got %d", constants.PayloadSize, len(payload))
	}
	tag := FrameType(binary.LittleEndian.Uint32(payload[0:4]))
	body := payload[headerSize:]
	switch tag {
	case FrameTypeStartMarker:
		return decodeStartMarker(body)
	case FrameTypeSetApplicationName:
		return decodeSetApplicationName(body)
	case FrameTypeAddSourceName:
		return decodeAddSourceName(body)
	case FrameTypeAddLogLevelName:
		return decodeAddLogLevelName(body)
	case FrameTypeClearLogViewer:
		return decodeClearLogViewer(body)
	case FrameTypeSaveSnapshot:
		return decodeSaveSnapshot(body)
	case FrameTypeMessage:
		return decodeMessage(body)
	case FrameTypeMessageExtension:
		return decodeMessageExtension(body)
	default:
		return nil, fmt.Errorf("wire: decode: unknown frame tag %d", tag)
	}
}

// --- StartMarker ---

// StartMarker begins a session. MaxLogLevelCount is always -1
// (unrestricted) per spec.md §9's Open Question resolution.
type StartMarker struct {
	MaxLogLevelCount int32
}

func NewStartMarker() StartMarker { return StartMarker{MaxLogLevelCount: -1} }

func (StartMarker) Type() FrameType { return FrameTypeStartMarker }

func (f StartMarker) encodeBody(dst []byte) error {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(f.MaxLogLevelCount))
	return nil
}

func decodeStartMarker(body []byte) (Frame, error) {
	return StartMarker{MaxLogLevelCount: int32(binary.LittleEndian.Uint32(body[0:4]))}, nil
}

// --- SetApplicationName ---

type SetApplicationName struct {
	Name string
}

func (SetApplicationName) Type() FrameType { return FrameTypeSetApplicationName }

func (f SetApplicationName) encodeBody(dst []byte) error {
	return putFixedText(dst[:constants.ApplicationNameRunes*2], constants.ApplicationNameRunes, f.Name)
}

func decodeSetApplicationName(body []byte) (Frame, error) {
	name, err := getFixedText(body[:constants.ApplicationNameRunes*2], constants.ApplicationNameRunes)
	if err != nil {
		return nil, err
	}
	return SetApplicationName{Name: name}, nil
}

// --- AddSourceName ---

type AddSourceName struct {
	ID   int32
	Name string
}

func (AddSourceName) Type() FrameType { return FrameTypeAddSourceName }

func (f AddSourceName) encodeBody(dst []byte) error {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(f.ID))
	return putFixedText(dst[4:4+constants.SourceNameRunes*2], constants.SourceNameRunes, f.Name)
}

func decodeAddSourceName(body []byte) (Frame, error) {
	id := int32(binary.LittleEndian.Uint32(body[0:4]))
	name, err := getFixedText(body[4:4+constants.SourceNameRunes*2], constants.SourceNameRunes)
	if err != nil {
		return nil, err
	}
	return AddSourceName{ID: id, Name: name}, nil
}

// --- AddLogLevelName ---

type AddLogLevelName struct {
	ID   int32
	Name string
}

func (AddLogLevelName) Type() FrameType { return FrameTypeAddLogLevelName }

func (f AddLogLevelName) encodeBody(dst []byte) error {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(f.ID))
	return putFixedText(dst[4:4+constants.LogLevelNameRunes*2], constants.LogLevelNameRunes, f.Name)
}

func decodeAddLogLevelName(body []byte) (Frame, error) {
	id := int32(binary.LittleEndian.Uint32(body[0:4]))
	name, err := getFixedText(body[4:4+constants.LogLevelNameRunes*2], constants.LogLevelNameRunes)
	if err != nil {
		return nil, err
	}
	return AddLogLevelName{ID: id, Name: name}, nil
}

// --- ClearLogViewer / SaveSnapshot (identical shape) ---

type ClearLogViewer struct {
	FtTimestamp   int64
	Pid           int32
	HpTimestampUs int64
}

func (ClearLogViewer) Type() FrameType { return FrameTypeClearLogViewer }

func (f ClearLogViewer) encodeBody(dst []byte) error {
	encodeTimestampTriple(dst, f.FtTimestamp, f.Pid, f.HpTimestampUs)
	return nil
}

func decodeClearLogViewer(body []byte) (Frame, error) {
	ft, pid, hp := decodeTimestampTriple(body)
	return ClearLogViewer{FtTimestamp: ft, Pid: pid, HpTimestampUs: hp}, nil
}

type SaveSnapshot struct {
	FtTimestamp   int64
	Pid           int32
	HpTimestampUs int64
}

func (SaveSnapshot) Type() FrameType { return FrameTypeSaveSnapshot }

func (f SaveSnapshot) encodeBody(dst []byte) error {
	encodeTimestampTriple(dst, f.FtTimestamp, f.Pid, f.HpTimestampUs)
	return nil
}

func decodeSaveSnapshot(body []byte) (Frame, error) {
	ft, pid, hp := decodeTimestampTriple(body)
	return SaveSnapshot{FtTimestamp: ft, Pid: pid, HpTimestampUs: hp}, nil
}

func encodeTimestampTriple(dst []byte, ft int64, pid int32, hp int64) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(ft))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(pid))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(hp))
}

func decodeTimestampTriple(body []byte) (ft int64, pid int32, hp int64) {
	ft = int64(binary.LittleEndian.Uint64(body[0:8]))
	pid = int32(binary.LittleEndian.Uint32(body[8:12]))
	hp = int64(binary.LittleEndian.Uint64(body[12:20]))
	return
}

// --- Message / MessageExtension ---

type Message struct {
	FtTimestamp    int64
	HpTimestampUs  int64
	SourceID       int32
	LevelID        int32
	Pid            int32
	ExtensionCount int32
	Text           string // first MaxShortMessageRunes code units only
}

func (Message) Type() FrameType { return FrameTypeMessage }

func (f Message) encodeBody(dst []byte) error {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(f.FtTimestamp))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(f.HpTimestampUs))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(f.SourceID))
	binary.LittleEndian.PutUint32(dst[20:24], uint32(f.LevelID))
	binary.LittleEndian.PutUint32(dst[24:28], uint32(f.Pid))
	binary.LittleEndian.PutUint32(dst[28:32], uint32(f.ExtensionCount))
	return putFixedText(dst[32:32+constants.MaxShortMessageRunes*2], constants.MaxShortMessageRunes, f.Text)
}

func decodeMessage(body []byte) (Frame, error) {
	ft := int64(binary.LittleEndian.Uint64(body[0:8]))
	hp := int64(binary.LittleEndian.Uint64(body[8:16]))
	sourceID := int32(binary.LittleEndian.Uint32(body[16:20]))
	levelID := int32(binary.LittleEndian.Uint32(body[20:24]))
	pid := int32(binary.LittleEndian.Uint32(body[24:28]))
	extCount := int32(binary.LittleEndian.Uint32(body[28:32]))
	text, err := getFixedText(body[32:32+constants.MaxShortMessageRunes*2], constants.MaxShortMessageRunes)
	if err != nil {
		return nil, err
	}
	return Message{
		FtTimestamp: ft, HpTimestampUs: hp, SourceID: sourceID, LevelID: levelID,
		Pid: pid, ExtensionCount: extCount, Text: text,
	}, nil
}

type MessageExtension struct {
	Text string // up to MaxExtensionRunes code units
}

func (MessageExtension) Type() FrameType { return FrameTypeMessageExtension }

func (f MessageExtension) encodeBody(dst []byte) error {
	return putFixedText(dst[:constants.MaxExtensionRunes*2], constants.MaxExtensionRunes, f.Text)
}

func decodeMessageExtension(body []byte) (Frame, error) {
	text, err := getFixedText(body[:constants.MaxExtensionRunes*2], constants.MaxExtensionRunes)
	if err != nil {
		return nil, err
	}
	return MessageExtension{Text: text}, nil
}

// ExtensionCount returns ceil(max(0, len-short)/ext) per spec.md §4.2/§8.
func ExtensionCount(totalCodeUnits int) int {
	remaining := totalCodeUnits - constants.MaxShortMessageRunes
	if remaining <= 0 {
		return 0
	}
	return (remaining + constants.MaxExtensionRunes - 1) / constants.MaxExtensionRunes
}

// SplitMessage splits text into a Message (first MaxShortMessageRunes code
// units) and 0+ MessageExtension frames (MaxExtensionRunes code units
// each, the last possibly shorter), per spec.md §4.2.
func SplitMessage(text string) (Message, []MessageExtension, error) {
	units, err := splitCodeUnits(text)
	if err != nil {
		return Message{}, nil, err
	}

	extCount := ExtensionCount(len(units))

	shortEnd := len(units)
	if shortEnd > constants.MaxShortMessageRunes {
		shortEnd = constants.MaxShortMessageRunes
	}
	shortText, err := codeUnitsToString(units[:shortEnd])
	if err != nil {
		return Message{}, nil, err
	}

	msg := Message{ExtensionCount: int32(extCount), Text: shortText}

	exts := make([]MessageExtension, 0, extCount)
	pos := shortEnd
	for i := 0; i < extCount; i++ {
		end := pos + constants.MaxExtensionRunes
		if end > len(units) {
			end = len(units)
		}
		chunk, err := codeUnitsToString(units[pos:end])
		if err != nil {
			return Message{}, nil, err
		}
		exts = append(exts, MessageExtension{Text: chunk})
		pos = end
	}

	return msg, exts, nil
}
