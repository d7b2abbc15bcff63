package main

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// ALiS (asciinema live stream) binary framing, version 1. Each websocket
// binary message is one frame: a single tag byte, a little-endian u64
// millisecond timestamp for output/resize, then the payload. The first
// frame carries the magic header and the initial geometry.
const (
	alisMagic = "ALiS\x01"

	alisTagInit      = 'I'
	alisTagOutput    = 'O'
	alisTagResize    = 'R'
	alisTagKeepalive = 'K'
)

// alisKeepaliveInterval is how long a stream may sit idle before a
// keepalive frame is sent.
const alisKeepaliveInterval = 15 * time.Second

// AlisEncoder frames events for one live-stream client. The only state is
// the clock base: time is measured from the moment the subscriber
// attached.
type AlisEncoder struct {
	epoch time.Time
}

func NewAlisEncoder() *AlisEncoder {
	return &AlisEncoder{epoch: time.Now()}
}

func (e *AlisEncoder) elapsedMs() uint64 {
	return uint64(time.Since(e.epoch).Milliseconds())
}

// InitFrame is the first frame on the wire: magic header, init tag, and
// the starting geometry as JSON.
func (e *AlisEncoder) InitFrame(cols, rows int) []byte {
	header, _ := json.Marshal(struct {
		Cols   int    `json:"cols"`
		Rows   int    `json:"rows"`
		TimeMs uint64 `json:"time_ms"`
	}{cols, rows, 0})

	frame := make([]byte, 0, len(alisMagic)+1+len(header))
	frame = append(frame, alisMagic...)
	frame = append(frame, alisTagInit)
	frame = append(frame, header...)
	return frame
}

// OutputFrame frames a chunk of terminal output: tag, timestamp,
// varint-length and the UTF-8 payload with invalid bytes replaced.
func (e *AlisEncoder) OutputFrame(data []byte) []byte {
	text := toValidUTF8(data)

	frame := make([]byte, 0, 1+8+binary.MaxVarintLen64+len(text))
	frame = append(frame, alisTagOutput)
	frame = binary.LittleEndian.AppendUint64(frame, e.elapsedMs())
	frame = binary.AppendUvarint(frame, uint64(len(text)))
	frame = append(frame, text...)
	return frame
}

// ResizeFrame frames a geometry change: tag, timestamp, JSON dimensions.
func (e *AlisEncoder) ResizeFrame(cols, rows int) []byte {
	size, _ := json.Marshal(struct {
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	}{cols, rows})

	frame := make([]byte, 0, 1+8+len(size))
	frame = append(frame, alisTagResize)
	frame = binary.LittleEndian.AppendUint64(frame, e.elapsedMs())
	frame = append(frame, size...)
	return frame
}

// KeepaliveFrame is a single tag byte sent on idle streams.
func KeepaliveFrame() []byte {
	return []byte{alisTagKeepalive}
}

// toValidUTF8 replaces invalid byte sequences with U+FFFD so the payload
// is always well-formed text.
func toValidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
