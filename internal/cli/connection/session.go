package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
)

// Gateway routes.
const (
	LoginPath   = "/auth/login"
	SessionPath = "/auth/session"
	VersionPath = "/version"
)

// AuthDisabledMessage is the session check message of a host running
// without authentication.
const AuthDisabledMessage = "Authentication is disabled"

// Hasura headers.
const (
	HeaderRole        = "x-hasura-role"
	HeaderAdminSecret = "x-hasura-admin-secret"
)

// CompatibleHostVersions lists the host versions this client is built for.
var CompatibleHostVersions = []string{
	"2.18.0",
	"2.19.0",
	"2.20.0",
	"3.0.0",
	"3.0.1",
	"3.1.0",
	"3.1.1",
	"3.2.0",
}

// AuthOptions tunes Authenticate.
type AuthOptions struct {
	// SkipVersionCheck demotes a version mismatch to a warning.
	SkipVersionCheck bool
}

// HostSession is a live connection to one host deployment. When a token is
// set the active role is always one of its allowed roles.
type HostSession struct {
	graphqlURL        string
	gatewayURL        string
	client            *HTTPClient
	configurationName string
	token             *domain.Token
	activeRole        string
	log               logger.Logger
}

// NewHostSession creates an unauthenticated session.
func NewHostSession(graphqlURL, gatewayURL string, client *HTTPClient) *HostSession {
	return &HostSession{
		graphqlURL: strings.TrimRight(graphqlURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     client,
		log:        client.log,
	}
}

// NewFromConfiguration creates an unauthenticated session for cfg.
func NewFromConfiguration(cfg domain.HostConfiguration, client *HTTPClient) *HostSession {
	s := NewHostSession(cfg.GraphQLURL, cfg.GatewayURL, client)
	s.configurationName = cfg.Name
	s.log = s.log.With("configuration", cfg.Name)
	return s
}

func (s *HostSession) GraphQLURL() string        { return s.graphqlURL }
func (s *HostSession) GatewayURL() string        { return s.gatewayURL }
func (s *HostSession) ConfigurationName() string { return s.configurationName }
func (s *HostSession) Token() *domain.Token      { return s.token }
func (s *HostSession) ActiveRole() string        { return s.activeRole }
func (s *HostSession) Client() *HTTPClient       { return s.client }

// Authenticated reports whether the session carries a token.
func (s *HostSession) Authenticated() bool {
	return s.token != nil
}

// CheckVersion fetches the host version and reports whether it is in
// CompatibleHostVersions.
func (s *HostSession) CheckVersion(ctx context.Context) (string, error) {
	resp, err := s.client.Get(ctx, s.gatewayURL+VersionPath)
	if err != nil {
		return "", err
	}
	var body struct {
		Version string `json:"version"`
	}
	if err := ParseResponse(resp, &body); err != nil {
		return "", err
	}
	if !slices.Contains(CompatibleHostVersions, body.Version) {
		return body.Version, domain.ErrIncompatibleVersion.WithDetails(
			fmt.Sprintf("host is %q, supported: %s", body.Version, strings.Join(CompatibleHostVersions, ", ")))
	}
	return body.Version, nil
}

// Authenticate logs in with username and password, adopts the token's
// default role and confirms the host honors the new token.
func (s *HostSession) Authenticate(ctx context.Context, username, password string, opts AuthOptions) error {
	version, err := s.CheckVersion(ctx)
	if err != nil {
		if !opts.SkipVersionCheck {
			return err
		}
		s.log.Warn("host version check failed, continuing", "version", version, "error", err)
	} else {
		s.log.Debug("host version compatible", "version", version)
	}

	tok, err := s.login(ctx, username, password)
	if err != nil {
		s.client.metrics.ObserveLogin("failure")
		return err
	}

	s.setToken(tok, tok.DefaultRole)
	if !s.LivenessCheck(ctx) {
		s.clearToken()
		s.client.metrics.ObserveLogin("failure")
		return domain.ErrAuthentication.WithDetails("host rejected the session check right after login")
	}

	s.client.metrics.ObserveLogin("success")
	s.log.Info("authenticated", "username", tok.Username, "role", s.activeRole)
	return nil
}

// loginResponse is the gateway's answer to a login request.
type loginResponse struct {
	Success bool    `json:"success"`
	Token   *string `json:"token"`
	Message string  `json:"message"`
}

func (s *HostSession) login(ctx context.Context, username, password string) (*domain.Token, error) {
	resp, err := s.client.PostJSON(ctx, s.gatewayURL+LoginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport.WithDetails("read login response").WithCause(err)
	}

	var body loginResponse
	decodeErr := json.Unmarshal(data, &body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrAuthentication.WithDetails(loginMessage(body, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, domain.ErrTransport.WithDetails(fmt.Sprintf("POST %s: status %d", LoginPath, resp.StatusCode))
	case decodeErr != nil:
		return nil, domain.ErrProtocol.WithDetails("parse login response").WithCause(decodeErr)
	case !body.Success || body.Token == nil:
		return nil, domain.ErrAuthentication.WithDetails(loginMessage(body, "login rejected"))
	}

	return domain.ParseToken(*body.Token)
}

func loginMessage(body loginResponse, fallback string) string {
	if body.Message != "" {
		return body.Message
	}
	return fallback
}

// ExternalAuthenticate satisfies an authentication proxy in front of the
// host. The form is StaticPostVars plus secrets; cookies set by the proxy
// stay in the jar and travel with later requests.
func (s *HostSession) ExternalAuthenticate(ctx context.Context, ea *domain.ExternalAuthConfig, secrets map[string]string) error {
	form := url.Values{}
	for k, v := range ea.StaticPostVars {
		form.Set(k, v)
	}
	for _, name := range ea.SecretPostVars {
		v, ok := secrets[name]
		if !ok {
			return domain.ErrAuthentication.WithDetails(fmt.Sprintf("missing value for %q", name))
		}
		form.Set(name, v)
	}

	resp, err := s.client.PostForm(ctx, ea.AuthURL, form)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return domain.ErrAuthentication.WithDetails("external authentication rejected: " + resp.Status)
	}
	if err := ParseResponse(resp, nil); err != nil {
		return err
	}
	s.log.Debug("external authentication ok", "auth_url", ea.AuthURL)
	return nil
}

// ChangeRole switches the active role. The role is left unchanged when it
// is not one of the token's allowed roles.
func (s *HostSession) ChangeRole(role string) error {
	if s.token == nil {
		return domain.ErrUnauthenticated.WithDetails("cannot change role")
	}
	if !s.token.AllowsRole(role) {
		return domain.ErrInvalidRole.WithDetails(
			fmt.Sprintf("%q is not one of %s", role, strings.Join(s.token.AllowedRoles, ", ")))
	}
	s.activeRole = role
	s.client.SetHeader(HeaderRole, role)
	s.client.metrics.ObserveRoleChange()
	return nil
}

// SetAdminSecret adds the admin secret header. It never stands in for a
// token.
func (s *HostSession) SetAdminSecret(secret string) error {
	if s.token == nil {
		return domain.ErrUnauthenticated.WithDetails("admin secret requires an authenticated session")
	}
	s.client.SetHeader(HeaderAdminSecret, secret)
	return nil
}

// LivenessCheck reports whether the host still honors the session token.
// It never returns an error.
func (s *HostSession) LivenessCheck(ctx context.Context) bool {
	if s.token == nil {
		return false
	}

	resp, err := s.client.Get(ctx, s.gatewayURL+SessionPath)
	if err != nil {
		s.log.Debug("liveness check failed", "error", err)
		return false
	}
	var body struct {
		Success bool `json:"success"`
	}
	if err := ParseResponse(resp, &body); err != nil {
		s.log.Debug("liveness check failed", "error", err)
		return false
	}
	return body.Success
}

// AuthEnabled reports whether the host wants a password at login. A host
// that cannot be asked is assumed to want one.
func (s *HostSession) AuthEnabled(ctx context.Context) bool {
	resp, err := s.client.Get(ctx, s.gatewayURL+SessionPath)
	if err != nil {
		s.log.Debug("auth mode check failed", "error", err)
		return true
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := ParseResponse(resp, &body); err != nil {
		s.log.Debug("auth mode check failed", "error", err)
		return true
	}
	return body.Message != AuthDisabledMessage
}

// graphQLRequest is the POST body of a GraphQL operation.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message string `json:"message"`
}

// Execute runs a GraphQL operation and returns the first field of data.
func (s *HostSession) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	resp, err := s.client.PostJSON(ctx, s.graphqlURL, graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if err := ParseResponse(resp, &body); err != nil {
		return nil, err
	}

	if len(body.Errors) > 0 {
		msgs := make([]string, len(body.Errors))
		for i, e := range body.Errors {
			msgs[i] = e.Message
		}
		return nil, domain.ErrProtocol.WithDetails(strings.Join(msgs, "; "))
	}

	result, err := firstField(body.Data)
	if err != nil {
		return nil, domain.ErrProtocol.WithCause(err)
	}
	return result, nil
}

var errNoData = errors.New("response has no data")

// firstField returns the value of the first key of a JSON object, in
// document order.
func firstField(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errNoData
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("data is not an object")
	}
	if !dec.More() {
		return nil, errNoData
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *HostSession) setToken(tok *domain.Token, role string) {
	s.token = tok
	s.activeRole = role
	s.client.SetHeader("Authorization", "Bearer "+tok.Encoded)
	s.client.SetHeader(HeaderRole, role)
}

func (s *HostSession) clearToken() {
	s.token = nil
	s.activeRole = ""
	s.client.DelHeader("Authorization")
	s.client.DelHeader(HeaderRole)
}

// Descriptor returns the serializable form of the session.
func (s *HostSession) Descriptor() *domain.SessionDescriptor {
	d := &domain.SessionDescriptor{
		ConfigurationName: s.configurationName,
		GraphQLURL:        s.graphqlURL,
		GatewayURL:        s.gatewayURL,
		ActiveRole:        s.activeRole,
	}
	if s.token != nil {
		d.Token = s.token.Encoded
	}
	for _, u := range []string{s.gatewayURL, s.graphqlURL} {
		for _, c := range s.client.Cookies(u) {
			d.Cookies = append(d.Cookies, domain.Cookie{URL: u, Name: c.Name, Value: c.Value})
		}
	}
	return d
}

// FromDescriptor rebuilds a session on a fresh transport. tok must be the
// token parsed from d, or nil for an unauthenticated session.
func FromDescriptor(d *domain.SessionDescriptor, tok *domain.Token, client *HTTPClient) *HostSession {
	s := NewHostSession(d.GraphQLURL, d.GatewayURL, client)
	s.configurationName = d.ConfigurationName
	if d.ConfigurationName != "" {
		s.log = s.log.With("configuration", d.ConfigurationName)
	}

	for _, c := range d.Cookies {
		client.SetCookies(c.URL, []*http.Cookie{{Name: c.Name, Value: c.Value, Path: "/"}})
	}
	if tok != nil {
		role := d.ActiveRole
		if role == "" {
			role = tok.DefaultRole
		}
		s.setToken(tok, role)
	}
	return s
}
