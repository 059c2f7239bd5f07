package nrfnet

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/nrfnet/nrfnet/internal/httputil"
	"github.com/nrfnet/nrfnet/pkg/mesh"
)

// Status is the read-only node state served by the API.
type Status struct {
	SessionID     string        `json:"session_id"`
	Interface     string        `json:"interface"`
	Channel       uint8         `json:"channel"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	AckInFlight   int           `json:"ack_in_flight"`
	Mesh          mesh.Snapshot `json:"mesh"`
}

// Status captures the current node state.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{
		SessionID:     n.sessionID.String(),
		Interface:     n.conf.InterfaceName,
		Channel:       n.conf.Channel,
		UptimeSeconds: time.Since(n.startedAt).Seconds(),
		AckInFlight:   n.ack.InFlight(),
		Mesh:          n.mesh.Snapshot(),
	}
}

func (n *Node) apiHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			httputil.WriteJSON(w, req, http.StatusOK, n.Status())
		})
		r.Get("/neighbors", func(w http.ResponseWriter, req *http.Request) {
			n.mu.Lock()
			neighbors := n.mesh.Snapshot().Neighbors
			n.mu.Unlock()
			httputil.WriteJSON(w, req, http.StatusOK, neighbors)
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))

	return cors.Default().Handler(r)
}

func (n *Node) startAPI() error {
	ln, err := net.Listen("tcp", n.conf.APIAddr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: n.apiHandler()}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("api server: %v", err)
		}
	}()
	log.Infof("status api listening on %s", ln.Addr())

	n.stopAPI = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("api shutdown: %v", err)
		}
	}
	return nil
}
