//go:build !windows

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// getShell returns the user's shell for Unix systems, falling back to
// bash and then sh.
func getShell() (string, []string) {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, nil
	}
	shellCmd := "/bin/bash"
	shellArgs := []string{"--norc", "--noprofile"}
	if _, err := os.Stat(shellCmd); err != nil {
		shellCmd = "/bin/sh"
		shellArgs = nil
	}
	return shellCmd, shellArgs
}

// setProcAttr sets Unix-specific process attributes for TTY support
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true, // Create new session (TTY requirement)
		Setctty: true, // Make this the controlling terminal
	}
}

// hangupProcess sends SIGHUP to the child's session group — proper TTY
// termination. Since we used Setsid, the negative PID targets the whole
// session.
func hangupProcess(cmd *exec.Cmd) {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGHUP)
}

// killProcessGroup force-terminates the session group after the hangup
// grace period expires.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	cmd.Process.Kill()
}
