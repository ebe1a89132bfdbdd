// Package daemon implementa el servicio web de verificación: subida
// de listas, cola FIFO con un worker y consulta de resultados.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Response es el sobre JSON de todas las respuestas del daemon
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Server es el servidor HTTP del daemon
type Server struct {
	addr     string
	handlers *Handlers
	httpSrv  *http.Server
}

// NewServer crea un nuevo servidor
func NewServer(addr string, handlers *Handlers) *Server {
	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Routes arma el mux con todos los endpoints
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.handlers.HandleUpload)
	mux.HandleFunc("POST /start", s.handlers.HandleStart)
	mux.HandleFunc("GET /queue", s.handlers.HandleQueue)
	mux.HandleFunc("DELETE /queue/{id}", s.handlers.HandleCancel)
	mux.HandleFunc("POST /stop", s.handlers.HandleStop)
	mux.HandleFunc("GET /status", s.handlers.HandleStatus)
	mux.HandleFunc("GET /jobs/{id}", s.handlers.HandleJob)
	mux.HandleFunc("GET /results", s.handlers.HandleListResults)
	mux.HandleFunc("GET /results/{filename}", s.handlers.HandleDownloadResult)
	mux.HandleFunc("GET /uploads", s.handlers.HandleListUploads)

	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"message": "pong"})
	})

	return mux
}

// Start arranca el servidor en background. Los errores de arranque
// (puerto ocupado) llegan por el canal retornado.
func (s *Server) Start() <-chan error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           logRequests(s.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown apaga el servidor ordenadamente
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// logRequests registra cada petición atendida
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
