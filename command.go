package main

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Command is one control-protocol message read from stdin. Type
// discriminates which other fields are meaningful.
type Command struct {
	Type    string   `json:"type"`
	Keys    []string `json:"keys,omitempty"`
	Payload string   `json:"payload,omitempty"`
	Cols    int      `json:"cols,omitempty"`
	Rows    int      `json:"rows,omitempty"`
}

const (
	cmdSendKeys     = "sendKeys"
	cmdInput        = "input"
	cmdResize       = "resize"
	cmdTakeSnapshot = "takeSnapshot"
	cmdClose        = "close"
)

// knownCommand reports whether t names a command the event loop handles.
func knownCommand(t string) bool {
	switch t {
	case cmdSendKeys, cmdInput, cmdResize, cmdTakeSnapshot, cmdClose:
		return true
	}
	return false
}

// ReadCommands decodes newline-delimited JSON commands from r and sends
// them on out. Blank lines are skipped and malformed lines are logged and
// dropped; the stream never terminates on a bad command. EOF closes out,
// which the event loop treats as a close command.
func ReadCommands(r io.Reader, out chan<- Command) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	// Large input payloads (heredocs) can exceed the default line limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cmd Command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			log.Error().Err(err).Msg("malformed command line")
			continue
		}
		if !knownCommand(cmd.Type) {
			log.Error().Str("type", cmd.Type).Msg("unknown command type")
			continue
		}

		out <- cmd
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("error reading control stream")
	}
}
