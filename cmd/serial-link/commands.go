package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"serial-link/internal/config"
	"serial-link/internal/discovery"
	"serial-link/internal/protocol"
	"serial-link/internal/script"
	"serial-link/pkg/session"
)

func portsFlags(fs *pflag.FlagSet) {
	fs.Bool("all", false, "list every port, ignoring the configured patterns")
}

func runPorts(cfg *config.Config, logger *zap.Logger, fs *pflag.FlagSet) error {
	discoveryConfig := &discovery.Config{PortPatterns: cfg.Discovery.PortPatterns}
	if all, _ := fs.GetBool("all"); all {
		discoveryConfig.PortPatterns = []string{}
	}

	ports, err := discovery.NewScanner(logger, discoveryConfig).Scan(context.Background())
	if err != nil {
		return err
	}
	return printPorts(os.Stdout, ports)
}

func printPorts(w io.Writer, ports []*discovery.PortInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		ids := "-"
		if p.IsUSB {
			ids = p.VID + ":" + p.PID
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.IsUSB, ids, dash(p.SerialNumber), dash(p.Product))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sendFlags(fs *pflag.FlagSet) {
	fs.String("data", "", "data to split with the receive buffer policy instead of positional segments")
	fs.Bool("hex", false, "print the reply as hex")
}

func runSend(cfg *config.Config, logger *zap.Logger, fs *pflag.FlagSet) error {
	data, _ := fs.GetString("data")
	asHex, _ := fs.GetBool("hex")
	segments := fs.Args()

	if (data == "") == (len(segments) == 0) {
		return fmt.Errorf("pass either segments as arguments or --data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	var response []byte
	if data != "" {
		response, err = s.Exchange(ctx, data)
	} else {
		raw := make([][]byte, len(segments))
		for i, segment := range segments {
			raw[i] = []byte(segment)
		}
		response, err = s.WriteSegmentsAndRead(ctx, raw)
	}
	if err != nil {
		return err
	}

	return printResponse(os.Stdout, response, asHex)
}

func printResponse(w io.Writer, response []byte, asHex bool) error {
	if asHex {
		_, err := fmt.Fprintln(w, hex.EncodeToString(response))
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n", response)
	return err
}

func scriptFlags(fs *pflag.FlagSet) {
	fs.Bool("hex", false, "print replies as hex")
}

func runScript(cfg *config.Config, logger *zap.Logger, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one script file")
	}
	asHex, _ := fs.GetBool("hex")

	sc, err := script.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	results, runErr := script.NewRunner(s, logger).Run(ctx, sc)
	for _, result := range results {
		fmt.Fprintf(os.Stdout, "%s [%s] ", result.Name, strings.Join(result.Segments, ", "))
		if err := printResponse(os.Stdout, result.Response, asHex); err != nil {
			return err
		}
	}
	return runErr
}

// openSession opens the configured port with the configured driver
func openSession(cfg *config.Config, logger *zap.Logger) (*session.Session, error) {
	if cfg.Serial.Port == "" {
		return nil, fmt.Errorf("no port configured, use --port or serial.port")
	}

	driver, err := protocol.CreateDriver(cfg.Serial.DriverConfig(), logger)
	if err != nil {
		return nil, err
	}

	return session.OpenWithSettings(
		driver,
		cfg.Serial.Port,
		cfg.Serial.Settings(),
		session.WithLogger(logger),
		session.WithSeparator(cfg.Serial.Separator),
	)
}
