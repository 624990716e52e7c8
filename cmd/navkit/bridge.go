package main

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/historyadapter"
	"github.com/navkit-dev/navkit/navbridge"
)

func bridgeCmd() *cobra.Command {
	var addr, origin string

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve a WebSocket endpoint for a remote browser shim",
		Long: `bridge starts an HTTP server exposing a single WebSocket route
(/ws). Each connection gets its own history-mode engine bound to a
navbridge.Bridge, so a remote browser shim's pushState/replaceState/go/
reload calls drive the same transition pipeline a local adapter would.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(addr, origin)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8787", "address to listen on")
	cmd.Flags().StringVar(&origin, "origin", "https://navkit.local", "origin new engines are constructed with")
	return cmd
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func runBridge(addr, origin string) error {
	logger := slog.Default()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		handleBridgeConn(w, req, origin, logger)
	})

	info("bridge listening on %s (ws route: /ws)", addr)
	return http.ListenAndServe(addr, r)
}

func handleBridgeConn(w http.ResponseWriter, r *http.Request, origin string, logger *slog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("navkit bridge: upgrade failed", "error", err)
		return
	}

	initial, err := url.Parse(origin + "/")
	if err != nil {
		logger.Error("navkit bridge: invalid origin", "error", err)
		conn.Close()
		return
	}

	bridge := navbridge.New(conn, initial)
	adapter := historyadapter.New(bridge, origin)
	engine := navkit.New(adapter, origin, navkit.WithLogger(logger))
	adapter.Attach(engine)

	logger.Info("navkit bridge: connection established", "remote", r.RemoteAddr)
	bridge.ReadLoop()
	logger.Info("navkit bridge: connection closed", "remote", r.RemoteAddr)
}
