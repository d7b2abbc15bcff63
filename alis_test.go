package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"
)

func TestAlisInitFrame(t *testing.T) {
	enc := NewAlisEncoder()
	frame := enc.InitFrame(80, 24)

	if !bytes.HasPrefix(frame, []byte("ALiS\x01")) {
		t.Fatalf("frame missing magic header: %v", frame[:6])
	}
	if frame[5] != alisTagInit {
		t.Fatalf("tag = %c, want I", frame[5])
	}

	var hdr struct {
		Cols   int    `json:"cols"`
		Rows   int    `json:"rows"`
		TimeMs uint64 `json:"time_ms"`
	}
	if err := json.Unmarshal(frame[6:], &hdr); err != nil {
		t.Fatalf("init payload not JSON: %v", err)
	}
	if hdr.Cols != 80 || hdr.Rows != 24 || hdr.TimeMs != 0 {
		t.Errorf("init payload = %+v, want 80x24 at t=0", hdr)
	}
}

func TestAlisOutputFrame(t *testing.T) {
	enc := NewAlisEncoder()
	frame := enc.OutputFrame([]byte("hello"))

	if frame[0] != alisTagOutput {
		t.Fatalf("tag = %c, want O", frame[0])
	}

	// 8-byte little-endian timestamp follows the tag.
	ts := binary.LittleEndian.Uint64(frame[1:9])
	if ts > 1000 {
		t.Errorf("timestamp = %dms, expected near zero", ts)
	}

	length, n := binary.Uvarint(frame[9:])
	if n <= 0 {
		t.Fatal("bad varint length")
	}
	payload := frame[9+n:]
	if uint64(len(payload)) != length {
		t.Fatalf("declared length %d, payload %d", length, len(payload))
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want %q", payload, "hello")
	}
}

func TestAlisOutputFrameLossyUTF8(t *testing.T) {
	enc := NewAlisEncoder()
	frame := enc.OutputFrame([]byte{'o', 'k', 0xff, 0xfe})

	length, n := binary.Uvarint(frame[9:])
	payload := string(frame[9+n:])
	if uint64(len(payload)) != length {
		t.Fatalf("declared length %d, payload %d", length, len(payload))
	}
	if !bytes.HasPrefix([]byte(payload), []byte("ok")) {
		t.Errorf("payload = %q, want ok prefix", payload)
	}
	if !bytes.Contains([]byte(payload), []byte("�")) {
		t.Errorf("invalid bytes not replaced: %q", payload)
	}
}

func TestAlisResizeFrame(t *testing.T) {
	enc := NewAlisEncoder()
	frame := enc.ResizeFrame(120, 40)

	if frame[0] != alisTagResize {
		t.Fatalf("tag = %c, want R", frame[0])
	}

	var size struct {
		Cols int `json:"cols"`
		Rows int `json:"rows"`
	}
	if err := json.Unmarshal(frame[9:], &size); err != nil {
		t.Fatalf("resize payload not JSON: %v", err)
	}
	if size.Cols != 120 || size.Rows != 40 {
		t.Errorf("resize payload = %+v, want 120x40", size)
	}
}

func TestAlisKeepaliveFrame(t *testing.T) {
	frame := KeepaliveFrame()
	if len(frame) != 1 || frame[0] != alisTagKeepalive {
		t.Errorf("keepalive frame = %v, want single K byte", frame)
	}
}
