// Command conductor runs the Caltrain voice agent from a terminal: it
// captures microphone audio, streams it to the live model endpoint, plays
// the spoken replies and renders the departure board and session log.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/railvoice/conductor/pkg/agent"
	"github.com/railvoice/conductor/pkg/core/audio"
	"github.com/railvoice/conductor/pkg/geo"
	"github.com/railvoice/conductor/pkg/schedule"
)

type options struct {
	dbPath      string
	model       string
	endpoint    string
	geoEndpoint string
	metricsAddr string
	debug       bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("conductor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dbPath, "db", "conductor.db", "path to the schedule cache database")
	fs.StringVar(&opts.model, "model", agent.DefaultModel, "live model identifier")
	fs.StringVar(&opts.endpoint, "endpoint", agent.DefaultEndpoint, "live model websocket endpoint")
	fs.StringVar(&opts.geoEndpoint, "geo-endpoint", "", "geolocation provider URL (empty denies location access)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "listen address for /metrics (empty disables)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func newLogger(stderr io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	// Best effort: missing .env just means the key comes from the real
	// environment.
	_ = godotenv.Load()
	apiKey := os.Getenv("GEMINI_API_KEY")

	store, err := schedule.Open(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open schedule store: %w", err)
	}
	defer store.Close()

	var locator geo.Locator = geo.Denied{}
	if opts.geoEndpoint != "" {
		locator = geo.NewHTTPLocator(opts.geoEndpoint)
	}

	speaker, err := audio.NewSpeaker(audio.PlaybackConfig())
	if err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}
	defer speaker.Close()

	metrics := agent.NewMetrics("conductor")
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			logger.Info("metrics listening", "addr", opts.metricsAddr)
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	updates := make(chan struct{}, 1)
	ag, err := agent.New(agent.Config{
		APIKey:   apiKey,
		Model:    opts.model,
		Endpoint: opts.endpoint,
		Store:    store,
		Locator:  locator,
		Sink:     speaker,
		Logger:   logger,
		Metrics:  metrics,
		OnUpdate: func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}

	if err := ag.Connect(ctx); err != nil {
		return err
	}
	done := ag.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	r := &renderer{out: stdout}
	r.render(ag)
	for {
		select {
		case <-updates:
			r.render(ag)
		case <-done:
			r.render(ag)
			return nil
		case sig := <-sigCh:
			logger.Info("shutdown signal received", "signal", sig.String())
			ag.Disconnect()
			r.render(ag)
			return nil
		case <-ctx.Done():
			ag.Disconnect()
			return ctx.Err()
		}
	}
}

// renderer writes log lines incrementally and reprints the board when it
// changes.
type renderer struct {
	out       io.Writer
	logOffset int
	boardKey  string
}

func (r *renderer) render(ag *agent.Agent) {
	entries := ag.Logs(r.logOffset)
	for _, e := range entries {
		fmt.Fprintf(r.out, "%s [%s] %s\n", e.At.Format("15:04:05"), strings.ToUpper(string(e.Level)), e.Message)
	}
	r.logOffset += len(entries)

	r.printBoard(ag.Board())
}

// printBoard reprints the departure board when its rows changed.
func (r *renderer) printBoard(board []agent.BoardItem) {
	key := boardKey(board)
	if key == r.boardKey {
		return
	}
	r.boardKey = key
	if len(board) == 0 {
		return
	}

	tw := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORIGIN\tDESTINATION\tTIME\tSTATUS\tSOURCE")
	for _, item := range board {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			item.Origin, item.Destination, item.Time, item.Status, item.Source)
	}
	tw.Flush()
}

func boardKey(board []agent.BoardItem) string {
	var b strings.Builder
	for _, item := range board {
		b.WriteString(item.Origin)
		b.WriteByte('|')
		b.WriteString(item.Destination)
		b.WriteByte('|')
		b.WriteString(item.Time)
		b.WriteByte('|')
		b.WriteString(item.Source)
		b.WriteByte('\n')
	}
	return b.String()
}

func runMain(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	logger := newLogger(stderr, opts.debug)
	if err := run(context.Background(), opts, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "conductor: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}
