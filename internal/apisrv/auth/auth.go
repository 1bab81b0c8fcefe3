package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	v "github.com/asaskevich/govalidator"
	"github.com/go-chi/jwtauth/v5"
	"github.com/jekabolt/grbpwr-crm/internal/auth/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	// AuthMetadataKey is header key to match auth token
	AuthMetadataKey = "Grpc-Metadata-Authorization"
)

// Config contains the configuration for the auth server.
type Config struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	MasterPassword string        `mapstructure:"master_password"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
}

// Server issues and checks admin tokens.
type Server struct {
	JwtAuth    *jwtauth.JWTAuth
	jwtTTL     time.Duration
	masterHash []byte
}

// New creates a new auth server.
func New(c *Config) (*Server, error) {
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	s := &Server{
		JwtAuth: jwtauth.New("HS256", []byte(c.JWTSecret), nil),
		jwtTTL:  c.JWTTTL,
	}
	if s.jwtTTL <= 0 {
		s.jwtTTL = 24 * time.Hour
	}
	if c.MasterPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.MasterPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("can't hash master password: %w", err)
		}
		s.masterHash = hash
	}
	return s, nil
}

// TTL is the lifetime of issued tokens.
func (s *Server) TTL() time.Duration {
	return s.jwtTTL
}

type LoginRequest struct {
	Username string `json:"username" valid:"required"`
	Password string `json:"password" valid:"required"`
}

type LoginResponse struct {
	AuthToken string    `json:"authToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges the master password for a token carrying the username as subject.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if _, err := v.ValidateStruct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.masterHash == nil || bcrypt.CompareHashAndPassword(s.masterHash, []byte(req.Password)) != nil {
		slog.Default().WarnContext(r.Context(), "failed admin login",
			slog.String("username", req.Username),
		)
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	username := strings.ToLower(req.Username)
	token, err := jwt.NewTokenWithSubject(s.JwtAuth, s.jwtTTL, username)
	if err != nil {
		slog.Default().ErrorContext(r.Context(), "can't issue token",
			slog.String("err", err.Error()),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{
		AuthToken: token,
		ExpiresAt: time.Now().Add(s.jwtTTL).UTC(),
	})
}

// WithAuth middleware checks if the user is authenticated. The token is read
// from Authorization, the gRPC gateway metadata header or the jwt cookie.
func (s *Server) WithAuth(next http.Handler) http.Handler {
	verify := jwtauth.Verify(s.JwtAuth, jwtauth.TokenFromHeader, tokenFromMetadata, jwtauth.TokenFromCookie)
	return verify(jwt.Authenticator(next))
}

func tokenFromMetadata(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get(AuthMetadataKey), "Bearer "))
}
