package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/utils"
	"serial-link/pkg/session"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type command struct {
	name    string
	summary string
	serial  bool
	run     func(cfg *config.Config, logger *zap.Logger, fs *pflag.FlagSet) error
	flags   func(fs *pflag.FlagSet)
}

var commands = []*command{
	{name: "ports", summary: "list serial ports", run: runPorts, flags: portsFlags},
	{name: "send", summary: "send segments and print the reply frames", serial: true, run: runSend, flags: sendFlags},
	{name: "run", summary: "run a YAML exchange script", serial: true, run: runScript, flags: scriptFlags},
	{name: "serve", summary: "serve the session over HTTP and WebSocket", serial: true, run: runServe, flags: serveFlags},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "-h", "--help", "help":
		usage()
		return
	case "version":
		fmt.Println(version)
		return
	}

	cmd := findCommand(os.Args[1])
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := execute(cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "serial-link %s: %v\n", cmd.name, err)
		os.Exit(1)
	}
}

func execute(cmd *command, args []string) error {
	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "configuration file (default: ./serial-link.yaml if present)")
	fs.String("log-level", "info", "log level: debug, info, warn, error, fatal")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("log-output", "stderr", "log output: stdout, stderr or a file path")
	if cmd.serial {
		serialFlags(fs)
	}
	if cmd.flags != nil {
		cmd.flags(fs)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)
	defer utils.LogPanic(logger)

	return cmd.run(cfg, logger, fs)
}

// serialFlags registers the line settings shared by every command that opens
// a port. Defaults mirror session.DefaultSettings.
func serialFlags(fs *pflag.FlagSet) {
	fs.StringP("port", "p", "", "serial port, or host:port for the tcp driver")
	fs.IntP("baud", "b", 9600, "baud rate")
	fs.Int("parity", session.DefaultParity, "parity: 0 none, 1 odd, 2 even")
	fs.Int("char-size", session.DefaultCharSize, "data bits: 5, 6, 7 or 8")
	fs.Int("stop-bits", session.DefaultStopBits, "stop bits: 1 or 2")
	fs.String("flow-control", session.DefaultFlowControl, "flow control: none, software or hardware")
	fs.Int("end-read-byte", int(session.DefaultEndReadByte), "byte value terminating a reply frame")
	fs.String("end-write-byte", session.DefaultEndWriteByte, "bytes written after every segment")
	fs.Uint64("timeout", session.DefaultTimeoutSeconds, "read timeout in seconds")
	fs.Uint32("timeout-ns", 0, "additional read timeout in nanoseconds")
	fs.String("receive-buffer", session.DefaultReceiveBuffer, `receive buffer size in bytes or "unlimited"`)
	fs.String("separator", session.DefaultSeparator, "separator used to split data into segments")
	fs.StringP("driver", "d", "serial", "transport driver: serial, tarm or tcp")
}

func findCommand(name string) *command {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: serial-link <command> [flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(os.Stderr, "  %-8s %s\n", "version", "print the version")
	fmt.Fprintf(os.Stderr, "\nRun 'serial-link <command> --help' for the flags of a command.\n")
}
