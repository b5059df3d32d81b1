// Command server serves files out of a root directory over the
// reliable-transfer protocol, accepting one handshake per connection
// identifier and streaming each transfer independently.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"srft/internal/config"
	"srft/internal/conn"
	"srft/internal/logging"
	"srft/internal/stats"
	"srft/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	host := fs.String("host", "0.0.0.0", "address to bind")
	portFlag := fs.String("port", strconv.Itoa(config.ServerPort), "port to bind")
	root := fs.String("out", "", "directory to serve files from (required)")
	chunk := fs.Int("chunk", config.MaxPayload, "payload bytes per chunk")
	window := fs.Int("window", config.WindowSize, "chunks in flight at once")
	rto := fs.Duration("rto", config.RTO, "retransmit timeout")
	logLevel := fs.String("log-level", "info", "debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "text|json")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := config.ValidateHost(*host); err != nil {
		return err
	}
	port, err := config.ParsePort(*portFlag)
	if err != nil {
		return err
	}
	if *root == "" {
		return fmt.Errorf("--out is required")
	}
	if err := config.ValidateChunkSize(*chunk); err != nil {
		return err
	}
	if err := config.ValidateWindowSize(*window); err != nil {
		return err
	}
	if err := config.ValidateRTO(*rto); err != nil {
		return err
	}
	if info, err := os.Stat(*root); err != nil || !info.IsDir() {
		return fmt.Errorf("--out %q is not a directory", *root)
	}

	log, err := logging.New("server", *logLevel, *logFormat)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	st := stats.New()
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(stats.NewCollector(st, "server"))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.WithField("error", err).Warn("metrics server stopped")
			}
		}()
		log.WithField("addr", *metricsAddr).Info("serving metrics")
	}

	bindIP := net.ParseIP(*host)
	sock, err := transport.NewRawSocket(bindIP, uint16(port))
	if err != nil {
		return fmt.Errorf("opening raw socket: %w", err)
	}
	defer sock.Close()

	srv := &conn.Server{
		Sock:       sock,
		Root:       *root,
		ChunkSize:  *chunk,
		WindowSize: *window,
		RTO:        *rto,
		Stats:      st,
		Log:        log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("root", *root).WithField("host_port", fmt.Sprintf("%s:%d", *host, port)).Info("listening")
	srv.Serve(ctx)

	// Give in-flight transfers a moment to reach FIN_WAIT before exiting.
	time.Sleep(200 * time.Millisecond)
	return nil
}
