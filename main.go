package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var version = "dev"

// errStartup marks failures that happen while bringing the session up
// (spawn, bind); they exit 1 where usage errors exit 2.
var errStartup = errors.New("startup failed")

type options struct {
	listen    string
	size      string
	subscribe string
	customCSS string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "ht [flags] [--] [command [args...]]",
		Short:         "headless terminal: run a command under a PTY, drive it over stdin, watch it over websockets",
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args)
		},
	}

	f := cmd.Flags()
	// Everything after the wrapped command belongs to it, not to us.
	f.SetInterspersed(false)
	f.StringVar(&opts.listen, "listen", "", "HOST:PORT to serve the live view on")
	f.StringVar(&opts.size, "size", "80x24", "initial terminal size as COLSxROWS")
	f.StringVar(&opts.subscribe, "subscribe", "", "comma-separated events to emit on stdout (init,output,resize,snapshot)")
	f.StringVar(&opts.customCSS, "custom-css", "", "stylesheet file injected into the web player")
	return cmd
}

func main() {
	setupLogging()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ht: %v\n", err)
		if errors.Is(err, errStartup) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func setupLogging() {
	level := zerolog.InfoLevel
	if v := os.Getenv("HT_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// parseSize parses COLSxROWS; both values must be positive.
func parseSize(s string) (cols, rows int, err error) {
	c, r, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, want COLSxROWS", s)
	}
	cols, err = strconv.Atoi(c)
	if err == nil {
		rows, err = strconv.Atoi(r)
	}
	if err != nil || cols < 1 || rows < 1 {
		return 0, 0, fmt.Errorf("invalid size %q, want positive COLSxROWS", s)
	}
	return cols, rows, nil
}

func run(opts *options, command []string) error {
	cols, rows, err := parseSize(opts.size)
	if err != nil {
		return err
	}

	var stdoutMask EventMask
	if opts.subscribe != "" {
		stdoutMask, err = ParseEventMask(opts.subscribe, ",")
		if err != nil {
			return fmt.Errorf("--subscribe: %w", err)
		}
	}

	var customCSS []byte
	if opts.customCSS != "" {
		customCSS, err = os.ReadFile(opts.customCSS)
		if err != nil {
			log.Warn().Err(err).Str("path", opts.customCSS).Msg("custom css not loaded")
			customCSS = nil
		}
	}

	proc, err := SpawnChild(command, cols, rows, utf8LocaleEnv())
	if err != nil {
		return fmt.Errorf("%w: %v", errStartup, err)
	}

	scr := NewScreen(cols, rows)
	bus := NewBus()
	cmds := make(chan Command, 16)
	loop := NewEventLoop(proc, scr, bus, cmds)

	if opts.listen != "" {
		srv := NewServer(loop, customCSS)
		addr, err := srv.Listen(opts.listen)
		if err != nil {
			proc.Close()
			return fmt.Errorf("%w: listen on %s: %v", errStartup, opts.listen, err)
		}
		log.Info().Str("addr", addr).Msgf("live view at http://%s", addr)
	}

	log.Info().Int("pid", proc.Pid()).Int("cols", cols).Int("rows", rows).Msg("session started")

	go ReadCommands(os.Stdin, cmds)

	var sinkDone chan struct{}
	if stdoutMask != 0 {
		sub := bus.Add(stdoutMask, jsonQueueSize)
		bus.SendTo(sub, Event{Kind: EventInit, Cols: cols, Rows: rows, Pid: proc.Pid()})
		sinkDone = make(chan struct{})
		go func() {
			defer close(sinkDone)
			RunStdoutSink(sub, os.Stdout)
		}()
	}

	loop.Run()

	if sinkDone != nil {
		<-sinkDone
	}
	return nil
}
