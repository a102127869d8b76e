package audio

import (
	"encoding/binary"
)

// AudioType represents the type of audio data
type AudioType uint64

const (
	AudioTypeMixed  AudioType = 0 // mixed stream of all participants
	AudioTypeOneWay AudioType = 1 // one participant, separate-participant mode
	AudioTypeShare  AudioType = 2 // screen share audio
)

func (t AudioType) String() string {
	switch t {
	case AudioTypeMixed:
		return "mixed"
	case AudioTypeOneWay:
		return "one_way"
	case AudioTypeShare:
		return "share"
	default:
		return "unknown"
	}
}

// ParseAudioType is the inverse of AudioType.String.
func ParseAudioType(s string) (AudioType, bool) {
	switch s {
	case "mixed":
		return AudioTypeMixed, true
	case "one_way":
		return AudioTypeOneWay, true
	case "share":
		return AudioTypeShare, true
	default:
		return 0, false
	}
}

// Frame is a chunk of raw PCM delivered by the SDK
type Frame struct {
	Type       AudioType // Audio type
	UserID     uint64    // Speaker/source identifier (SDK node id)
	SampleRate int
	Channels   int
	Data       []byte // PCM audio data (S16LE)
}

var BinaryFrameHeaderSize = 2 * binary.Size(uint64(0)) // Type + UserID

// EncodedSize is the length of the buffer produced by Encode.
func (f *Frame) EncodedSize() int {
	return BinaryFrameHeaderSize + len(f.Data)
}

// Encode serializes the frame for WebSocket transmission.
func (f *Frame) Encode() []byte {
	buf := make([]byte, f.EncodedSize())
	f.EncodeTo(buf)
	return buf
}

// EncodeTo writes the encoded frame into buf, which must hold at least
// EncodedSize bytes, and returns the number of bytes written.
func (f *Frame) EncodeTo(buf []byte) int {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.Type))
	binary.LittleEndian.PutUint64(buf[8:16], f.UserID)
	n := copy(buf[BinaryFrameHeaderSize:], f.Data)
	return BinaryFrameHeaderSize + n
}
