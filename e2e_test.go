package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestE2EShellEcho runs the full flow against a real shell: type a
// command, then snapshot the screen and read it back like a human would.
func TestE2EShellEcho(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	cmds, sub, _ := startSession(t, "/bin/sh")

	cmds <- Command{Type: cmdSendKeys, Keys: []string{"echo hi", "Enter"}}

	// Wait until the echoed command and its output have hit the screen.
	var collected strings.Builder
	waitForEvent(t, sub, "shell output", func(ev Event) bool {
		if ev.Kind != EventOutput {
			return false
		}
		collected.Write(ev.Data)
		out := collected.String()
		return strings.Contains(out, "echo hi") && strings.Count(out, "hi") >= 2
	})

	cmds <- Command{Type: cmdTakeSnapshot}
	snap := waitForEvent(t, sub, "snapshot", func(ev Event) bool {
		return ev.Kind == EventSnapshot
	})

	var nonEmpty []string
	for _, line := range strings.Split(snap.Text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}
	if len(nonEmpty) < 2 {
		t.Fatalf("snapshot has %d non-empty lines, want at least 2:\n%s", len(nonEmpty), snap.Text)
	}

	joined := strings.Join(nonEmpty, "\n")
	if !strings.Contains(joined, "echo hi") {
		t.Errorf("snapshot missing typed command:\n%s", snap.Text)
	}
	foundResult := false
	for _, line := range nonEmpty {
		if !strings.Contains(line, "echo") && strings.Contains(line, "hi") {
			foundResult = true
		}
	}
	if !foundResult {
		t.Errorf("snapshot missing command output:\n%s", snap.Text)
	}
}

// TestE2ELargeHeredoc pushes a payload past the chunking threshold into a
// file through the shell and verifies nothing was lost or reordered.
func TestE2ELargeHeredoc(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	cmds, sub, _ := startSession(t, "/bin/sh")

	target := filepath.Join(t.TempDir(), "payload")
	payload := strings.Repeat("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMN", 40) // 2000 bytes

	cmds <- Command{Type: cmdInput, Payload: "cat > " + target + "\r"}

	// Let the shell hand stdin to cat before the payload arrives.
	var collected strings.Builder
	waitForEvent(t, sub, "cat command echo", func(ev Event) bool {
		if ev.Kind != EventOutput {
			return false
		}
		collected.Write(ev.Data)
		return strings.Contains(collected.String(), "cat >")
	})
	time.Sleep(200 * time.Millisecond)

	cmds <- Command{Type: cmdInput, Payload: payload + "\r"}
	cmds <- Command{Type: cmdSendKeys, Keys: []string{"C-d"}}

	deadline := time.Now().Add(15 * time.Second)
	want := payload + "\n"
	for {
		data, err := os.ReadFile(target)
		if err == nil && string(data) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("file never matched payload: err=%v, got %d bytes, want %d",
				err, len(data), len(want))
		}
		time.Sleep(100 * time.Millisecond)
	}
}
