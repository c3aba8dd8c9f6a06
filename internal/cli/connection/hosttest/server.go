// Package hosttest provides an in-process fake host for tests: a gateway
// with login, session check and version routes, a GraphQL endpoint and an
// external authentication proxy.
package hosttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// Paths served by Server, relative to its URL.
const (
	GraphQLPath      = "/v1/graphql"
	ExternalAuthPath = "/sso/login"
	ExternalCookie   = "sso_session"
)

// Request is one recorded request.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// GraphQLFunc answers a GraphQL request with a status and raw body.
type GraphQLFunc func(query string, variables map[string]any, header http.Header) (int, string)

// Server is a fake host.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	version       string
	users         map[string]string
	token         string
	revoked       bool
	authDisabled  bool
	loginStatus   int
	requireCookie bool
	graphql       GraphQLFunc
	requests      []Request
}

// New starts a fake host that accepts alice/secret and issues a token with
// roles viewer, user and aerie_admin (default user).
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		version: "3.1.0",
		users:   map[string]string{"alice": "secret"},
		token:   MintToken(t, "alice", []string{"viewer", "user", "aerie_admin"}, "user"),
		graphql: func(string, map[string]any, http.Header) (int, string) {
			return http.StatusOK, `{"data":{"ok":true}}`
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/session", s.handleSession)
	mux.HandleFunc("POST "+GraphQLPath, s.handleGraphQL)
	mux.HandleFunc("POST "+ExternalAuthPath, s.handleExternalAuth)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// GatewayURL returns the gateway base URL.
func (s *Server) GatewayURL() string { return s.URL }

// GraphQLURL returns the GraphQL endpoint URL.
func (s *Server) GraphQLURL() string { return s.URL + GraphQLPath }

// ExternalAuthURL returns the external authentication proxy URL.
func (s *Server) ExternalAuthURL() string { return s.URL + ExternalAuthPath }

// Token returns the token issued on login.
func (s *Server) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken replaces the token issued on login and honored by the session
// check.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetVersion sets the version reported by the gateway.
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// SetRevoked makes the session check fail for every token.
func (s *Server) SetRevoked(revoked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = revoked
}

// DisableAuth makes the host run without authentication: login accepts
// any password of a known user and the session check always succeeds.
func (s *Server) DisableAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authDisabled = true
}

// SetLoginStatus forces the login route to answer with status.
func (s *Server) SetLoginStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
}

// RequireExternalCookie makes login fail unless the external auth cookie
// is presented.
func (s *Server) RequireExternalCookie() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireCookie = true
}

// SetGraphQL replaces the GraphQL handler.
func (s *Server) SetGraphQL(fn GraphQLFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphql = fn
}

// Requests returns the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.version
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"version": v})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, users, token, requireCookie, authDisabled := s.loginStatus, s.users, s.token, s.requireCookie, s.authDisabled
	s.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"success": false, "message": http.StatusText(status)})
		return
	}
	if requireCookie {
		if c, err := r.Cookie(ExternalCookie); err != nil || c.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "external authentication required"})
			return
		}
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad request"})
		return
	}
	if pw, ok := users[body.Username]; !ok || (!authDisabled && pw != body.Password) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "token": nil, "message": "Login failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token, "message": ""})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	disabled := s.authDisabled
	ok := !s.revoked && r.Header.Get("Authorization") == "Bearer "+s.token
	s.mu.Unlock()
	if disabled {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Authentication is disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": ok})
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	fn := s.graphql
	s.mu.Unlock()

	status, out := fn(body.Query, body.Variables, r.Header)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(out))
}

func (s *Server) handleExternalAuth(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("password") == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: ExternalCookie, Value: "granted", Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// MintToken returns a signed token carrying the given identity and roles.
func MintToken(t testing.TB, username string, roles []string, defaultRole string) string {
	t.Helper()
	allowed := make([]any, len(roles))
	for i, r := range roles {
		allowed[i] = r
	}
	claims := jwt.MapClaims{
		"username": username,
		"https://hasura.io/jwt/claims": map[string]any{
			"x-hasura-allowed-roles": allowed,
			"x-hasura-default-role":  defaultRole,
			"x-hasura-user-id":       username,
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("hosttest"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}
