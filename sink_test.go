package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEventJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want map[string]any
	}{
		{
			name: "init",
			ev:   Event{Kind: EventInit, Seq: 1, Cols: 80, Rows: 24, Pid: 42},
			want: map[string]any{"type": "init", "cols": 80.0, "rows": 24.0, "seq": 1.0, "pid": 42.0},
		},
		{
			name: "output",
			ev:   Event{Kind: EventOutput, Seq: 2, Data: []byte("hi\r\n")},
			want: map[string]any{"type": "output", "seq": 2.0, "data": "hi\r\n"},
		},
		{
			name: "resize",
			ev:   Event{Kind: EventResize, Seq: 3, Cols: 100, Rows: 30},
			want: map[string]any{"type": "resize", "cols": 100.0, "rows": 30.0, "seq": 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := eventJSON(tt.ev)
			if err != nil {
				t.Fatalf("eventJSON: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("not JSON: %v", err)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestEventJSONSnapshotCursor(t *testing.T) {
	ev := Event{
		Kind: EventSnapshot, Seq: 9, Cols: 80, Rows: 24,
		Text: "screen", CursorCol: 5, CursorRow: 2, CursorVisible: true,
	}
	data, err := eventJSON(ev)
	if err != nil {
		t.Fatalf("eventJSON: %v", err)
	}

	var got struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		Cursor struct {
			Col     int  `json:"col"`
			Row     int  `json:"row"`
			Visible bool `json:"visible"`
		} `json:"cursor"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if got.Type != "snapshot" || got.Text != "screen" {
		t.Errorf("snapshot fields wrong: %+v", got)
	}
	if got.Cursor.Col != 5 || got.Cursor.Row != 2 || !got.Cursor.Visible {
		t.Errorf("cursor = %+v, want (5, 2, visible)", got.Cursor)
	}
}

func TestEventJSONLossyOutput(t *testing.T) {
	data, err := eventJSON(Event{Kind: EventOutput, Seq: 1, Data: []byte{'o', 'k', 0xff}})
	if err != nil {
		t.Fatalf("eventJSON: %v", err)
	}
	var got struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if !strings.HasPrefix(got.Data, "ok") || !strings.Contains(got.Data, "�") {
		t.Errorf("data = %q, want lossy-replaced text", got.Data)
	}
}

func TestRunStdoutSink(t *testing.T) {
	bus := NewBus()
	sub := bus.Add(MaskAll, 16)
	bus.SendTo(sub, Event{Kind: EventInit, Cols: 80, Rows: 24, Pid: 7})
	bus.Publish(Event{Kind: EventOutput, Data: []byte("hello")})
	bus.Close()

	var buf bytes.Buffer
	RunStdoutSink(sub, &buf)

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 not JSON: %v", err)
	}
	if first.Type != "init" {
		t.Errorf("first line type = %q, want init", first.Type)
	}

	var second struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 not JSON: %v", err)
	}
	if second.Type != "output" || second.Data != "hello" {
		t.Errorf("second line = %+v", second)
	}
}
