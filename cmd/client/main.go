// Command client receives one file over the reliable-transfer protocol
// from a server and writes it to disk.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"srft/internal/config"
	"srft/internal/conn"
	"srft/internal/logging"
	"srft/internal/stats"
	"srft/internal/transport"
)

const (
	clientPort = 5006
	serverPort = 5005
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "client:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	output := fs.String("o", "", "output path (default: ./<basename of filename>)")
	fs.StringVar(output, "output", "", "output path (default: ./<basename of filename>)")
	logLevel := fs.String("log-level", "info", "debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "text|json")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: client [flags] server_ip filename")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	serverIP := fs.Arg(0)
	filename := fs.Arg(1)

	outPath := *output
	if outPath == "" {
		outPath = filepath.Join(".", filepath.Base(filename))
	}
	if err := config.ValidateFilePath(outPath); err != nil {
		return err
	}

	log, err := logging.New("client", *logLevel, *logFormat)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	entry := logging.WithRole(log, "client")

	ip := net.ParseIP(serverIP)
	if ip == nil {
		return fmt.Errorf("invalid server_ip %q", serverIP)
	}

	st := stats.New()
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewCollector(st, "client"))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				entry.WithField("error", err).Warn("metrics server stopped")
			}
		}()
		entry.WithField("addr", *metricsAddr).Info("serving metrics")
	}

	sock, err := transport.NewRawSocket(nil, clientPort)
	if err != nil {
		return fmt.Errorf("opening raw socket: %w", err)
	}
	defer sock.Close()

	server := transport.Endpoint{IP: ip, Port: serverPort}

	c := &conn.Client{Sock: sock, Stats: st, Log: entry}
	connID, err := c.Handshake(conn.ClientConfig{Server: server, Filename: filename})
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	st.StartTransfer()
	result, err := c.Run(connID, server, f)
	st.EndTransfer()
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	report := st.Report()
	entry.WithFields(map[string]interface{}{
		"chunks_written":   result.ChunksWritten,
		"chunks_duplicate": result.ChunksDuplicate,
		"frames_invalid":   result.FramesInvalid,
		"throughput_mbps":  report.ThroughputMbps,
		"retransmit_pct":   report.RetransmitRatePct,
		"output":           outPath,
	}).Info("transfer complete")
	return nil
}
