package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"openfront.gg/internal/gamelink"
	"openfront.gg/internal/mcp"
	"openfront.gg/internal/query"
	"openfront.gg/internal/rules"
	"openfront.gg/internal/state"
	"openfront.gg/internal/tape"
)

func main() {
	var (
		listen     = flag.String("listen", "127.0.0.1:8090", "http listen address")
		gamePath   = flag.String("game-path", "/game/ws", "websocket path the game client connects to")
		rulesFile  = flag.String("rules", "", "rules yaml (structure catalog + cost curves); empty = built-in defaults")
		schemaFile = flag.String("intent-schemas", "./schemas/intents.schema.json", "intent payload schema document")
		tapeDir    = flag.String("tape-dir", "", "directory for the inbound message tape; empty = recording off")
		eventCap   = flag.Int("event-cap", 100, "max retained recent events")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bridge] ", log.LstdFlags|log.Lmicroseconds)

	if !isLoopbackListenAddress(*listen) && !envBool("OPENFRONT_BRIDGE_ALLOW_REMOTE") {
		logger.Fatalf("refusing to bind %q: the bridge carries an unauthenticated game link; set OPENFRONT_BRIDGE_ALLOW_REMOTE=1 to override", *listen)
	}

	r := rules.Default()
	if *rulesFile != "" {
		var err error
		r, err = rules.Load(*rulesFile)
		if err != nil {
			logger.Fatalf("rules: %v", err)
		}
	}

	validator, err := gamelink.NewIntentValidator(*schemaFile)
	if err != nil {
		logger.Fatalf("intent schemas: %v", err)
	}

	var rec *tape.Recorder
	if *tapeDir != "" {
		rec = tape.NewRecorder(*tapeDir)
		defer rec.Close()
	}

	reconciler := state.NewReconciler(state.Config{
		EventCap: *eventCap,
		Logger:   logger,
	})

	link, err := gamelink.New(gamelink.Config{
		Reconciler: reconciler,
		Validator:  validator,
		Tape:       rec,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("game link: %v", err)
	}
	defer link.Close()

	facade := query.New(reconciler, r)

	srv, err := mcp.NewServer(mcp.Config{
		Query:       facade,
		Link:        link,
		Diagnostics: reconciler.Diagnostics,
	})
	if err != nil {
		logger.Fatalf("mcp: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(*gamePath, link.Handler())
	mux.Handle("/", srv.Handler())

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on http://%s (game ws path=%s)", *listen, *gamePath)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func isLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = strings.TrimSpace(h)
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return false
	}
	hostLower := strings.ToLower(host)
	if hostLower == "localhost" {
		return true
	}
	ip := net.ParseIP(hostLower)
	return ip != nil && ip.IsLoopback()
}
