package main

import (
	"time"

	"github.com/rs/zerolog/log"
)

// AttachRequest asks the event loop to admit a new bus subscriber. The
// loop registers it and delivers the synthesized Init before replying, so
// the subscriber's first message always reflects the state it joined at.
type AttachRequest struct {
	Mask     EventMask
	Capacity int
	Reply    chan *Subscriber
}

// ViewSnapshot is a point-in-time rendering of the screen, produced for
// the HTTP view endpoint.
type ViewSnapshot struct {
	Text string
	HTML string
	Cols int
	Rows int
}

// inputChunk is one queued write to the PTY. paced marks chunks produced
// by splitting a large payload; those are written with a delay between
// them.
type inputChunk struct {
	data  []byte
	paced bool
}

// EventLoop is the single-threaded reactor at the center of the session.
// It exclusively owns the child process, the screen model and the
// pending-input queue, and is the sole publisher on the event bus.
type EventLoop struct {
	proc *ChildProc
	scr  *Screen
	bus  *Bus

	cmds   <-chan Command
	attach chan AttachRequest
	view   chan chan ViewSnapshot
	done   chan struct{}

	pending []inputChunk
	timer   *time.Timer
	timerC  <-chan time.Time
}

// NewEventLoop wires the reactor around an already-spawned child.
func NewEventLoop(proc *ChildProc, scr *Screen, bus *Bus, cmds <-chan Command) *EventLoop {
	return &EventLoop{
		proc:   proc,
		scr:    scr,
		bus:    bus,
		cmds:   cmds,
		attach: make(chan AttachRequest),
		view:   make(chan chan ViewSnapshot),
		done:   make(chan struct{}),
	}
}

// Done is closed when the loop has shut down and the bus is dropped.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// Attach admits a subscriber through the loop, so admission is serialized
// with event publication. Returns false if the session is already over.
func (l *EventLoop) Attach(mask EventMask, capacity int) (*Subscriber, bool) {
	req := AttachRequest{Mask: mask, Capacity: capacity, Reply: make(chan *Subscriber, 1)}
	select {
	case l.attach <- req:
	case <-l.done:
		return nil, false
	}
	select {
	case sub := <-req.Reply:
		return sub, true
	case <-l.done:
		return nil, false
	}
}

// View asks the loop for a rendering of the current screen, serialized
// with everything else the loop does. Returns false once the session is
// over.
func (l *EventLoop) View() (ViewSnapshot, bool) {
	reply := make(chan ViewSnapshot, 1)
	select {
	case l.view <- reply:
	case <-l.done:
		return ViewSnapshot{}, false
	}
	select {
	case snap := <-reply:
		return snap, true
	case <-l.done:
		return ViewSnapshot{}, false
	}
}

// Run drives the session until the child exits, stdin closes, or a close
// command arrives. It must be the only goroutine touching proc, scr and
// the pending queue.
func (l *EventLoop) Run() {
	for {
		select {
		case data, ok := <-l.proc.Output():
			if !ok {
				log.Info().Msg("child exited, shutting down")
				l.shutdown(false)
				return
			}
			l.scr.Feed(data)
			l.bus.Publish(Event{Kind: EventOutput, Data: data})

		case cmd, ok := <-l.cmds:
			if !ok || cmd.Type == cmdClose {
				l.shutdown(true)
				return
			}
			l.handleCommand(cmd)
			l.flushInput()

		case req := <-l.attach:
			l.admit(req)

		case reply := <-l.view:
			cols, rows := l.scr.Size()
			reply <- ViewSnapshot{
				Text: l.scr.Text(),
				HTML: l.scr.HTML(),
				Cols: cols,
				Rows: rows,
			}

		case <-l.timerC:
			l.timerC = nil
			l.flushInput()
		}
	}
}

func (l *EventLoop) handleCommand(cmd Command) {
	switch cmd.Type {
	case cmdSendKeys:
		var seq []byte
		for _, name := range cmd.Keys {
			b, ok := keyBytes(name)
			if !ok {
				log.Error().Err(ErrUnknownKey).Str("key", name).Msg("dropping sendKeys")
				return
			}
			seq = append(seq, b...)
		}
		l.enqueueInput(seq)

	case cmdInput:
		l.enqueueInput([]byte(cmd.Payload))

	case cmdResize:
		if cmd.Cols < 1 || cmd.Rows < 1 {
			log.Error().Int("cols", cmd.Cols).Int("rows", cmd.Rows).
				Msg("resize dimensions must be positive")
			return
		}
		if err := l.proc.Resize(cmd.Cols, cmd.Rows); err != nil {
			log.Error().Err(err).Msg("pty resize")
			return
		}
		l.scr.Resize(cmd.Cols, cmd.Rows)
		l.bus.Publish(Event{Kind: EventResize, Cols: cmd.Cols, Rows: cmd.Rows})

	case cmdTakeSnapshot:
		l.publishSnapshot()
	}
}

func (l *EventLoop) publishSnapshot() {
	cols, rows := l.scr.Size()
	curCol, curRow, visible := l.scr.Cursor()
	l.bus.Publish(Event{
		Kind:          EventSnapshot,
		Cols:          cols,
		Rows:          rows,
		Text:          l.scr.Text(),
		CursorCol:     curCol,
		CursorRow:     curRow,
		CursorVisible: visible,
	})
}

func (l *EventLoop) admit(req AttachRequest) {
	sub := l.bus.Add(req.Mask, req.Capacity)
	cols, rows := l.scr.Size()
	l.bus.SendTo(sub, Event{Kind: EventInit, Cols: cols, Rows: rows, Pid: l.proc.Pid()})
	req.Reply <- sub
}

func (l *EventLoop) enqueueInput(data []byte) {
	if len(data) == 0 {
		return
	}
	chunks, paced := ChunkInput(data)
	for _, c := range chunks {
		l.pending = append(l.pending, inputChunk{data: c, paced: paced})
	}
}

// flushInput writes queued chunks in FIFO order. A paced chunk followed by
// another paced chunk arms the pacing timer instead of writing on; the
// timer tick resumes the flush.
func (l *EventLoop) flushInput() {
	for len(l.pending) > 0 {
		if l.timerC != nil {
			return
		}
		head := l.pending[0]
		if err := l.proc.Write(head.data); err != nil {
			log.Error().Err(err).Msg("pty write, discarding pending input")
			l.pending = nil
			return
		}
		l.pending = l.pending[1:]
		if head.paced && len(l.pending) > 0 && l.pending[0].paced {
			if l.timer == nil {
				l.timer = time.NewTimer(inputChunkDelay)
			} else {
				l.timer.Reset(inputChunkDelay)
			}
			l.timerC = l.timer.C
		}
	}
}

// shutdown flushes input (bounded), drains the last output, reaps the
// child and drops the bus, cascading every subscriber closed.
func (l *EventLoop) shutdown(flushWrites bool) {
	if flushWrites && len(l.pending) > 0 {
		deadline := time.Now().Add(500 * time.Millisecond)
		for _, c := range l.pending {
			if time.Now().After(deadline) {
				log.Warn().Msg("flush deadline reached, dropping remaining input")
				break
			}
			if err := l.proc.Write(c.data); err != nil {
				break
			}
			if c.paced {
				time.Sleep(inputChunkDelay)
			}
		}
		l.pending = nil
	}

	l.proc.StopReader()

	// Bytes the reader already queued, then one final sweep of the
	// master so nothing the child said is lost.
	for data := range l.proc.Output() {
		l.scr.Feed(data)
		l.bus.Publish(Event{Kind: EventOutput, Data: data})
	}
	if final := l.proc.Drain(); len(final) > 0 {
		l.scr.Feed(final)
		l.bus.Publish(Event{Kind: EventOutput, Data: final})
	}

	l.proc.Close()
	l.bus.Close()
	close(l.done)
}
