package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSpawnFailed means the PTY pair or the child itself could not
	// be created.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrWriteClosed means the child exited and its PTY no longer
	// accepts input.
	ErrWriteClosed = errors.New("pty write side closed")
	// ErrResizeFailed means the window-size ioctl was rejected.
	ErrResizeFailed = errors.New("pty resize failed")
)

// Chunked-write policy. Host PTY line-discipline buffers are around 4 KiB
// and a single oversized write can silently discard the overflow,
// corrupting heredocs. Anything at or above the threshold is split into
// fixed chunks written with a pacing delay between them.
const (
	inputChunkThreshold = 1500
	inputChunkSize      = 512
	inputChunkDelay     = 10 * time.Millisecond
)

// ChildProc owns the child process and the master side of its PTY. The
// event loop is its only user: output arrives on Output, input goes
// through Write, and Close reaps the child.
type ChildProc struct {
	ptmx *os.File
	cmd  *exec.Cmd

	output     chan []byte
	done       chan struct{} // signals the read loop to stop
	readerDone chan struct{} // closed when the read loop has exited
}

// SpawnChild allocates a PTY pair, starts command with the slave as its
// controlling terminal and stdio, and begins reading the master. An empty
// command runs the user's shell. extraEnv entries override the inherited
// environment.
func SpawnChild(command []string, cols, rows int, extraEnv []string) (*ChildProc, error) {
	if len(command) == 0 {
		shell, args := getShell()
		command = append([]string{shell}, args...)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
	cmd.Env = append(cmd.Env, extraEnv...)
	setProcAttr(cmd)

	ws := &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
	ptmx, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSpawnFailed, command[0], err)
	}

	p := &ChildProc{
		ptmx:       ptmx,
		cmd:        cmd,
		output:     make(chan []byte, 64),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// Pid returns the child's process id.
func (p *ChildProc) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Output delivers chunks of raw PTY output. The channel closes when the
// child exits or the read loop is stopped.
func (p *ChildProc) Output() <-chan []byte {
	return p.output
}

// readLoop pumps the PTY master into the output channel. A short read
// deadline lets it notice the done signal; deadline misses are normal for
// idle interactive programs.
func (p *ChildProc) readLoop() {
	defer close(p.readerDone)

	buf := make([]byte, 8192)
	for {
		select {
		case <-p.done:
			close(p.output)
			return
		default:
			_ = p.ptmx.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

			n, err := p.ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case p.output <- chunk:
				case <-p.done:
					close(p.output)
					return
				}
			}
			if err != nil {
				if os.IsTimeout(err) {
					continue
				}
				// EOF or EIO: the child is gone.
				if err != io.EOF {
					log.Debug().Err(err).Msg("pty read ended")
				}
				close(p.output)
				return
			}
		}
	}
}

// Write sends one chunk of input to the PTY master. Callers are expected
// to have applied the chunking policy; this never splits.
func (p *ChildProc) Write(data []byte) error {
	if _, err := p.ptmx.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteClosed, err)
	}
	return nil
}

// ChunkInput applies the large-write policy: payloads at or above the
// threshold are split into fixed-size chunks that the caller must write
// with the pacing delay between them; smaller payloads stay whole.
func ChunkInput(data []byte) (chunks [][]byte, paced bool) {
	if len(data) < inputChunkThreshold {
		return [][]byte{data}, false
	}
	for len(data) > 0 {
		n := inputChunkSize
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks, true
}

// Resize propagates a new window size to the PTY; the kernel delivers
// SIGWINCH to the child.
func (p *ChildProc) Resize(cols, rows int) error {
	ws := &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
	if err := pty.Setsize(p.ptmx, ws); err != nil {
		return fmt.Errorf("%w: %v", ErrResizeFailed, err)
	}
	return nil
}

// StopReader halts the read loop and waits for it to exit, so a final
// Drain can read the master without a concurrent reader.
func (p *ChildProc) StopReader() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	select {
	case <-p.readerDone:
	case <-time.After(time.Second):
	}
}

// Drain performs one last non-blocking sweep of the master, returning any
// bytes the child produced before exiting. Only call after StopReader.
func (p *ChildProc) Drain() []byte {
	var out []byte
	buf := make([]byte, 8192)
	for {
		_ = p.ptmx.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return out
		}
	}
}

// Close hangs up the child's session, waits briefly for a clean exit,
// kills it if necessary, and always reaps. The master is closed last.
func (p *ChildProc) Close() {
	p.StopReader()

	if p.cmd.Process != nil {
		waitErr := make(chan error, 1)
		go func() { waitErr <- p.cmd.Wait() }()

		hangupProcess(p.cmd)

		select {
		case <-waitErr:
		case <-time.After(250 * time.Millisecond):
			killProcessGroup(p.cmd)
			<-waitErr
		}
	}

	if p.ptmx != nil {
		p.ptmx.Close()
	}
}
