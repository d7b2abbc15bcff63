package main

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Websocket timing, per the usual gorilla pump pattern.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

type cursorJSON struct {
	Col     int  `json:"col"`
	Row     int  `json:"row"`
	Visible bool `json:"visible"`
}

// eventJSON renders one event as its wire object. Output data is emitted
// as UTF-8 text with invalid bytes replaced.
func eventJSON(ev Event) ([]byte, error) {
	switch ev.Kind {
	case EventInit:
		return json.Marshal(struct {
			Type string `json:"type"`
			Cols int    `json:"cols"`
			Rows int    `json:"rows"`
			Seq  uint64 `json:"seq"`
			Pid  int    `json:"pid"`
		}{"init", ev.Cols, ev.Rows, ev.Seq, ev.Pid})

	case EventOutput:
		return json.Marshal(struct {
			Type string `json:"type"`
			Seq  uint64 `json:"seq"`
			Data string `json:"data"`
		}{"output", ev.Seq, toValidUTF8(ev.Data)})

	case EventResize:
		return json.Marshal(struct {
			Type string `json:"type"`
			Cols int    `json:"cols"`
			Rows int    `json:"rows"`
			Seq  uint64 `json:"seq"`
		}{"resize", ev.Cols, ev.Rows, ev.Seq})

	case EventSnapshot:
		return json.Marshal(struct {
			Type   string     `json:"type"`
			Seq    uint64     `json:"seq"`
			Text   string     `json:"text"`
			Cols   int        `json:"cols"`
			Rows   int        `json:"rows"`
			Cursor cursorJSON `json:"cursor"`
		}{"snapshot", ev.Seq, ev.Text, ev.Cols, ev.Rows,
			cursorJSON{ev.CursorCol, ev.CursorRow, ev.CursorVisible}})
	}
	return nil, nil
}

// RunStdoutSink writes each event as one JSON line. Used for the
// --subscribe surface; runs until the bus drops the subscriber.
func RunStdoutSink(sub *Subscriber, w io.Writer) {
	bw := bufio.NewWriter(w)
	for ev := range sub.C {
		data, err := eventJSON(ev)
		if err != nil || data == nil {
			continue
		}
		bw.Write(data)
		bw.WriteByte('\n')
		bw.Flush()
	}
}

// discardReads consumes client frames so pings are answered and closed
// connections are noticed; the returned channel closes when the client is
// gone.
func discardReads(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}

func closeCleanly(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// RunEventsClient pumps bus events to one /ws/events client as JSON text
// messages. Exits on bus drop (lag or session end) or socket error.
func RunEventsClient(conn *websocket.Conn, sub *Subscriber, detach func()) {
	defer detach()
	defer conn.Close()

	gone := discardReads(conn)
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				closeCleanly(conn)
				return
			}
			data, err := eventJSON(ev)
			if err != nil || data == nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("subscriber", sub.ID).Msg("events client write")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-gone:
			return
		}
	}
}

// RunAlisClient pumps bus events to one /ws/alis client as binary frames.
// The first bus event is the synthesized Init, which becomes the magic
// frame; idle streams get a keepalive.
func RunAlisClient(conn *websocket.Conn, sub *Subscriber, detach func()) {
	defer detach()
	defer conn.Close()

	gone := discardReads(conn)

	ev, ok := <-sub.C
	if !ok || ev.Kind != EventInit {
		closeCleanly(conn)
		return
	}
	enc := NewAlisEncoder()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, enc.InitFrame(ev.Cols, ev.Rows)); err != nil {
		return
	}

	idle := time.NewTimer(alisKeepaliveInterval)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				closeCleanly(conn)
				return
			}
			var frame []byte
			switch ev.Kind {
			case EventOutput:
				frame = enc.OutputFrame(ev.Data)
			case EventResize:
				frame = enc.ResizeFrame(ev.Cols, ev.Rows)
			default:
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Debug().Err(err).Str("subscriber", sub.ID).Msg("alis client write")
				return
			}
			resetIdle(idle)

		case <-idle.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, KeepaliveFrame()); err != nil {
				return
			}
			idle.Reset(alisKeepaliveInterval)

		case <-gone:
			return
		}
	}
}

func resetIdle(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(alisKeepaliveInterval)
}
