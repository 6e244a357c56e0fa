package feed

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicedesk/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Фид слушает только loopback, проверка Origin не нужна
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server локальный WebSocket-эндпоинт со статусами пайплайна.
type Server struct {
	cfg     config.FeedConfig
	hub     *Hub
	srv     *http.Server
	logger  *zap.SugaredLogger
	running atomic.Bool
}

func NewServer(cfg config.FeedConfig, hub *Hub, logger *zap.SugaredLogger) *Server {
	s := &Server{cfg: cfg, hub: hub, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWS)

	s.srv = &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		s.logger.Infow("feed server listening", "addr", s.srv.Addr, "path", s.cfg.Path)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("feed server stopped with error", "error", err)
		} else {
			s.logger.Infow("feed server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("feed server shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}
	s.hub.register(c)
	go c.writePump()
	go c.readPump(s.hub)
}
