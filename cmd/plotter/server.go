package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mastercactapus/plotter/machine"
)

const statusChannel = "/events/status"

type statusSource interface {
	Status() machine.Status
}

// statusServer publishes session status over HTTP. It only observes; it
// has no way to issue device commands.
type statusServer struct {
	http.Handler
	src statusSource
	sse *sse.Server
	log *slog.Logger
}

type statusJSON struct {
	State   string `json:"state"`
	Outcome string `json:"outcome"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Next    int    `json:"next"`
	Error   string `json:"error,omitempty"`
}

func toJSON(st machine.Status) statusJSON {
	res := statusJSON{
		State:   st.State.String(),
		Outcome: st.Outcome.String(),
		Done:    st.Done,
		Total:   st.Total,
		Next:    st.Next,
	}
	if st.Err != nil {
		res.Error = st.Err.Error()
	}
	return res
}

func newStatusServer(src statusSource, g prometheus.Gatherer, log *slog.Logger) *statusServer {
	r := mux.NewRouter()
	s := &statusServer{
		Handler: r,
		src:     src,
		sse: sse.NewServer(&sse.Options{
			Logger: slog.NewLogLogger(log.Handler(), slog.LevelDebug),
		}),
		log: log,
	}

	r.HandleFunc("/api/status", s.status).Methods("GET")
	r.Handle(statusChannel, s.sse).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")

	return s
}

func (s *statusServer) status(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toJSON(s.src.Status())); err != nil {
		s.log.Error("encode status", "err", err)
	}
}

// publish sends a snapshot to every event stream client.
func (s *statusServer) publish(st machine.Status) {
	data, err := json.Marshal(toJSON(st))
	if err != nil {
		s.log.Error("marshal status", "err", err)
		return
	}
	s.sse.SendMessage(statusChannel, sse.SimpleMessage(string(data)))
}

// listen serves until ctx is done.
func (s *statusServer) listen(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr, Handler: s}
	go func() {
		<-ctx.Done()
		s.sse.Shutdown()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info("status server listening", "addr", addr)
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("status server", "err", err)
	}
}
