package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcSlog "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/jekabolt/grbpwr-crm/internal/apisrv/admin"
	"github.com/jekabolt/grbpwr-crm/internal/apisrv/auth"
	"github.com/jekabolt/grbpwr-crm/internal/middleware"
	"github.com/jekabolt/grbpwr-crm/internal/ratelimit"
	"github.com/jekabolt/grbpwr-crm/log"
)

// Config is the configuration for the http server
type Config struct {
	Port           string   `mapstructure:"port"`
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the http server
type Server struct {
	hs     *http.Server
	gs     *grpc.Server
	health *health.Server
	c      *Config
	done   chan struct{}
}

// New creates a new server
func New(config *Config) *Server {
	return &Server{
		c:      config,
		health: health.NewServer(),
		done:   make(chan struct{}),
	}
}

// Done returns a channel that is closed when the listener exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler builds the HTTP API router.
func (s *Server) Handler(adminServer *admin.Server, authServer *auth.Server, exportLimiter *ratelimit.Limiter, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ClientIdentifier(middleware.ParseProxies(s.c.TrustedProxies)))
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return isOriginAllowed(origin, s.c.AllowedOrigins)
		},
		AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "ResponseType", auth.AuthMetadataKey},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				slog.Default().ErrorContext(r.Context(), "health check failed",
					slog.String("err", err.Error()),
				)
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	r.Post("/api/auth/login", authServer.Login)

	var exportMW []func(http.Handler) http.Handler
	if exportLimiter != nil {
		exportMW = append(exportMW, middleware.RateLimit(exportLimiter))
	}
	r.Mount("/api/admin", authServer.WithAuth(adminServer.Router(exportMW...)))

	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context, httpHandler http.Handler) error {
	opts := []grpcSlog.Option{
		grpcSlog.WithLogOnEvents(grpcSlog.StartCall, grpcSlog.FinishCall),
	}

	s.gs = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcSlog.UnaryServerInterceptor(log.InterceptorLogger(slog.Default()), opts...),
			grpcRecovery.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpcSlog.StreamServerInterceptor(log.InterceptorLogger(slog.Default()), opts...),
			grpcRecovery.StreamServerInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(s.gs, s.health)
	reflection.Register(s.gs)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor == 2 && strings.Contains(r.Header.Get("Content-Type"), "application/grpc") {
			s.gs.ServeHTTP(w, r)
			return
		}
		httpHandler.ServeHTTP(w, r)
	})

	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:              listenerAddr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Default().InfoContext(ctx, "grbpwr-crm listening",
			slog.String("addr", fmt.Sprintf("http://%v", listenerAddr)),
		)
		err := s.hs.ListenAndServe()
		if err == http.ErrServerClosed {
			slog.Default().InfoContext(ctx, "http server returned")
		} else {
			slog.Default().ErrorContext(ctx, "http server exited with an error",
				slog.String("err", err.Error()),
			)
		}
		close(s.done)
	}()

	return nil
}

// Stop drains HTTP connections and stops the gRPC server.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return fmt.Errorf("http server is not started")
	}
	s.health.Shutdown()
	err := s.hs.Shutdown(ctx)
	s.gs.GracefulStop()
	return err
}

func isOriginAllowed(origin string, allowedOrigins []string) bool {
	// Always allow localhost origins
	if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "https://localhost:") {
		return true
	}

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin || allowedOrigin == "*" {
			return true
		}
	}

	return false
}
