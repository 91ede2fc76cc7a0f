// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus/bridge"
	"github.com/Thermoquad/joystat/pkg/joybus/sim"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	bridgeSimListen  string
	bridgeSimPath    string
	bridgeSimAnimate bool
)

var bridgeSimCmd = &cobra.Command{
	Use:   "bridge_sim",
	Short: "Serve a simulated controller behind a pulse bridge over WebSocket",
	Long: `Run the pulse bridge protocol over WebSocket with a simulated GameCube
controller on the bus, so the other commands can be exercised end to end
without hardware.

Every client gets its own controller and bus. With --username set, clients
must authenticate with HTTP Basic auth using the JOYSTAT_PASSWORD password.

Example:
  joystat bridge_sim --listen :8080 &
  joystat poll --url ws://localhost:8080/joybus`,
	RunE: runBridgeSim,
}

func init() {
	rootCmd.AddCommand(bridgeSimCmd)
	bridgeSimCmd.Flags().StringVar(&bridgeSimListen, "listen", ":8080", "Address to listen on")
	bridgeSimCmd.Flags().StringVar(&bridgeSimPath, "path", "/joybus", "WebSocket endpoint path")
	bridgeSimCmd.Flags().BoolVar(&bridgeSimAnimate, "animate", false, "Sweep the main stick in a circle")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func runBridgeSim(cmd *cobra.Command, args []string) error {
	password := ""
	if cfg.Connection.Username != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithField("component", "bridge_sim")

	mux := http.NewServeMux()
	mux.HandleFunc(bridgeSimPath, func(w http.ResponseWriter, r *http.Request) {
		if cfg.Connection.Username != "" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != cfg.Connection.Username || pass != password {
				w.Header().Set("WWW-Authenticate", `Basic realm="joystat"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("upgrade failed")
			return
		}
		conn := &WebSocketConnection{conn: ws}
		defer conn.Close()

		clientLog := log.WithField("remote", r.RemoteAddr)
		clientLog.Info("client connected")

		controller := sim.NewController()
		bus := sim.NewBus(controller)
		if bridgeSimAnimate {
			animateCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go animateStick(animateCtx, controller)
		}

		device := bridge.NewDevice(bus, bus, bus, clientLog)
		if err := device.Serve(conn); err != nil && !errors.Is(err, ErrConnectionClosed) {
			clientLog.WithError(err).Warn("session ended")
			return
		}
		clientLog.Info("client disconnected")
	})

	srv := &http.Server{
		Addr:              bridgeSimListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Joystat - Bridge Simulator\n")
	fmt.Printf("Listening: ws://%s%s\n", bridgeSimListen, bridgeSimPath)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// animateStick moves the main stick around the unit circle, one turn per second
func animateStick(ctx context.Context, c *sim.Controller) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			angle := 2 * math.Pi * now.Sub(start).Seconds()
			s := c.State()
			s.StickX = uint8(0x80 + int(100*math.Cos(angle)))
			s.StickY = uint8(0x80 + int(100*math.Sin(angle)))
			c.SetState(s)
		}
	}
}
