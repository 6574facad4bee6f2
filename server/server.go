package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-http-utils/etag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sardine-ai/go-widget-config/bridge"
	"github.com/sardine-ai/go-widget-config/client"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/value"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Server exposes the bridge operations and raw blob access over HTTP.
type Server struct {
	Controller *client.Controller
	Bridge     *bridge.Bridge
	AuthKey    string // X-API-KEY required on non-probe routes when set

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// NewServer creates a Server on top of controller.
func NewServer(controller *client.Controller) *Server {
	return &Server{
		Controller: controller,
		Bridge:     bridge.New(controller),
	}
}

// Start listens on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	logrus.WithField("addr", addr).Info("Starting server")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, waiting for active requests until ctx ends.
// A server shut down before Start never listens.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}

// Handler returns the routes wrapped in the server's middleware.
func (s *Server) Handler() http.Handler {
	handler := etag.Handler(s.CreateHandlers(), false)
	if s.AuthKey != "" {
		handler = Auth(handler, s.AuthKey)
	}
	return RequestID(handler)
}

func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /app-info", s.handleAppInfo)
	for path, channel := range map[string]model.Channel{
		"/scenes":   model.SceneList,
		"/controls": model.ControlDeviceList,
		"/states":   model.StateDeviceList,
	} {
		mux.HandleFunc("GET "+path, s.getList(channel))
		mux.HandleFunc("PUT "+path, s.saveList(channel))
	}
	mux.HandleFunc("DELETE /configuration", s.handleClearAll)

	mux.HandleFunc("GET /blobs/{channel}", s.withChannel(s.getBlob))
	mux.HandleFunc("PUT /blobs/{channel}", s.withChannel(s.putBlob))
	mux.HandleFunc("DELETE /blobs/{channel}", s.withChannel(s.deleteBlob))
	return mux
}

func (s *Server) handleAppInfo(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON(w, r)
	if !ok {
		return
	}
	if body.Kind() != value.KindMap {
		http.Error(w, "app info must be a JSON object", http.StatusBadRequest)
		return
	}
	s.Bridge.SetUpAppInfoValue(r.Context(), body.Map())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveList(channel model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readJSON(w, r)
		if !ok {
			return
		}
		if body.Kind() != value.KindList {
			http.Error(w, "body must be a JSON array", http.StatusBadRequest)
			return
		}
		items := make([]any, 0, body.Len())
		for _, item := range body.Items() {
			items = append(items, item)
		}
		writeResponse(w, s.Bridge.SaveChannelList(r.Context(), channel, items))
	}
}

func (s *Server) getList(channel model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.Bridge.GetChannelListSync(r.Context(), channel)
		if err != nil {
			logrus.WithError(err).WithField("channel", channel).Debug("request ended before the store answered")
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
			return
		}
		writeValue(w, http.StatusOK, result)
	}
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.Bridge.ClearAllData(r.Context()))
}

func (s *Server) withChannel(next func(http.ResponseWriter, *http.Request, model.Channel)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, err := model.ParseChannel(r.PathValue("channel"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		next(w, r, channel)
	}
}

func (s *Server) getBlob(w http.ResponseWriter, r *http.Request, channel model.Channel) {
	blob, err := s.Controller.ReadBlob(r.Context(), channel)
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error reading blob")
		http.Error(w, "error reading configuration", http.StatusBadGateway)
		return
	}
	if blob == "" {
		http.Error(w, "Not Set Up", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, blob); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

func (s *Server) putBlob(w http.ResponseWriter, r *http.Request, channel model.Channel) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}
	if err := s.Controller.WriteBlob(r.Context(), channel, string(body)); err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error writing blob")
		http.Error(w, "error writing configuration", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBlob(w http.ResponseWriter, r *http.Request, channel model.Channel) {
	if err := s.Controller.DeleteBlob(r.Context(), channel); err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error deleting blob")
		http.Error(w, "error deleting configuration", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readJSON parses the request body, answering 400 when it is not JSON.
func readJSON(w http.ResponseWriter, r *http.Request) (value.Value, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return value.Null(), false
	}
	parsed, err := value.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return value.Null(), false
	}
	return parsed, true
}

func writeResponse(w http.ResponseWriter, resp model.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, resp.JSON()); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

func writeValue(w http.ResponseWriter, status int, v value.Value) {
	body, err := v.MarshalJSON()
	if err != nil {
		logrus.WithError(err).Error("error encoding response")
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}
