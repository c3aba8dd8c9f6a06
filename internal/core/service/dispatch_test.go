package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection/hosttest"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/credential"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
)

func newTestStore(t *testing.T, configs ...domain.HostConfiguration) *credential.Store {
	t.Helper()
	store := credential.NewStore(filepath.Join(t.TempDir(), "config.json"))
	for _, cfg := range configs {
		if err := store.Create(cfg); err != nil {
			t.Fatalf("Create(%s) error = %v", cfg.Name, err)
		}
	}
	return store
}

func (f *fixture) dispatcher(store ConfigurationSource, p Prompter, override, adminSecret string) *Dispatcher {
	return NewDispatcher(DispatchOptions{
		Configurations: store,
		Persistence:    f.manager(),
		NewClient:      testClientFactory(),
		Prompter:       p,
		Logger:         logger.Discard(),
		Override:       override,
		AdminSecret:    adminSecret,
	})
}

func TestDispatcher_ActiveSession(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(newTestStore(t), nil, "", "")

	if _, err := d.ResolveSession(context.Background()); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("ResolveSession() with no session error = %v, want ErrNoActiveSession", err)
	}

	if ok, err := f.manager().SetActiveSession(context.Background(), f.login(t, "local")); err != nil || !ok {
		t.Fatal(err)
	}
	s, err := f.dispatcher(newTestStore(t), nil, "", "").ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if s.ConfigurationName() != "local" {
		t.Errorf("ConfigurationName() = %q, want local", s.ConfigurationName())
	}
}

func TestDispatcher_OverrideByName(t *testing.T) {
	f := newFixture(t)
	store := newTestStore(t, f.configuration("ops"))
	p := &fakePrompter{answers: map[string]string{"Password for alice": "secret"}}

	s, err := f.dispatcher(store, p, "ops", "").ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if s.ConfigurationName() != "ops" || !s.Authenticated() {
		t.Errorf("session = %q authenticated=%v", s.ConfigurationName(), s.Authenticated())
	}
	if !slices.Equal(p.asked, []string{"Password for alice"}) {
		t.Errorf("prompts = %v, want only the password", p.asked)
	}
	if n := f.recordCount(t); n != 0 {
		t.Errorf("records = %d, override must not persist", n)
	}
}

func TestDispatcher_OverrideByPath(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "host.json")
	content := `{
  // local development host
  "name": "file-host",
  "graphql_url": "` + f.host.GraphQLURL() + `",
  "gateway_url": "` + f.host.GatewayURL() + `",
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	p := &fakePrompter{answers: map[string]string{"Username": "alice", "Password for alice": "secret"}}

	s, err := f.dispatcher(newTestStore(t), p, path, "").ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if s.ConfigurationName() != "file-host" {
		t.Errorf("ConfigurationName() = %q, want file-host", s.ConfigurationName())
	}
	if !slices.Equal(p.asked, []string{"Username", "Password for alice"}) {
		t.Errorf("prompts = %v", p.asked)
	}
}

func TestDispatcher_OverrideUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher(newTestStore(t), &fakePrompter{}, "nope", "").ResolveSession(context.Background())
	if !errors.Is(err, domain.ErrConfigurationNotFound) {
		t.Errorf("ResolveSession() error = %v, want ErrConfigurationNotFound", err)
	}
}

func TestDispatcher_OverrideBadLogin(t *testing.T) {
	f := newFixture(t)
	store := newTestStore(t, f.configuration("ops"))
	p := &fakePrompter{answers: map[string]string{"Password for alice": "wrong"}}

	_, err := f.dispatcher(store, p, "ops", "").ResolveSession(context.Background())
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("ResolveSession() error = %v, want ErrAuthentication", err)
	}
}

func TestDispatcher_AdminSecret(t *testing.T) {
	f := newFixture(t)
	if ok, err := f.manager().SetActiveSession(context.Background(), f.login(t, "local")); err != nil || !ok {
		t.Fatal(err)
	}

	s, err := f.dispatcher(newTestStore(t), nil, "", "s3cr3t").ResolveSession(context.Background())
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if got := s.Client().Header(connection.HeaderAdminSecret); got != "s3cr3t" {
		t.Errorf("%s = %q, want s3cr3t", connection.HeaderAdminSecret, got)
	}
}

func TestDispatcher_LoginExternalAuth(t *testing.T) {
	f := newFixture(t)
	f.host.RequireExternalCookie()

	cfg := f.configuration("sso")
	cfg.ExternalAuth = &domain.ExternalAuthConfig{
		AuthURL:        f.host.ExternalAuthURL(),
		StaticPostVars: map[string]string{"realm": "ops"},
		SecretPostVars: []string{"password"},
	}
	p := &fakePrompter{answers: map[string]string{"password": "proxy-pass", "Password for alice": "secret"}}

	s, err := f.dispatcher(newTestStore(t), p, "", "").Login(context.Background(), cfg, LoginOptions{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	cookies := s.Client().Cookies(f.host.GatewayURL())
	if len(cookies) != 1 || cookies[0].Name != hosttest.ExternalCookie {
		t.Errorf("cookies = %v, want the external auth cookie", cookies)
	}
	if ok, err := f.manager().SetActiveSession(context.Background(), s); err != nil || !ok {
		t.Fatalf("SetActiveSession() = %v, %v", ok, err)
	}

	restored, err := f.manager().GetActiveSession(context.Background())
	if err != nil {
		t.Fatalf("GetActiveSession() error = %v", err)
	}
	if len(restored.Client().Cookies(f.host.GatewayURL()+"/auth/login")) == 0 {
		t.Error("external auth cookie not restored from the record")
	}
}

func TestDispatcher_LoginWithoutPrompter(t *testing.T) {
	f := newFixture(t)
	d := f.dispatcher(newTestStore(t), nil, "", "")

	_, err := d.Login(context.Background(), f.configuration("local"), LoginOptions{})
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("Login() error = %v, want ErrAuthentication", err)
	}

	s, err := d.Login(context.Background(), f.configuration("local"), LoginOptions{Password: "secret"})
	if err != nil {
		t.Fatalf("Login() with password error = %v", err)
	}
	if s.Token().Username != "alice" {
		t.Errorf("Username = %q, want alice", s.Token().Username)
	}
}

func TestDispatcher_LoginAuthDisabled(t *testing.T) {
	f := newFixture(t)
	f.host.DisableAuth()
	p := &fakePrompter{}

	s, err := f.dispatcher(newTestStore(t), p, "", "").Login(context.Background(), f.configuration("local"), LoginOptions{})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.Authenticated() || s.Token().Username != "alice" {
		t.Errorf("session authenticated=%v", s.Authenticated())
	}
	if len(p.asked) != 0 {
		t.Errorf("prompts = %v, want none", p.asked)
	}
}

func TestDispatcher_ResolveConfigurationPrefersFile(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ops")
	cfg := f.configuration("from-file")
	data := `[{"name":"from-file","graphql_url":"` + cfg.GraphQLURL + `","gateway_url":"` + cfg.GatewayURL + `"}]`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	store := newTestStore(t, f.configuration("ops"))
	d := f.dispatcher(store, nil, "", "")

	got, err := d.ResolveConfiguration(path)
	if err != nil || got.Name != "from-file" {
		t.Errorf("ResolveConfiguration(path) = %q, %v", got.Name, err)
	}
	got, err = d.ResolveConfiguration("ops")
	if err != nil || got.Name != "ops" {
		t.Errorf("ResolveConfiguration(name) = %q, %v", got.Name, err)
	}
}

func TestDispatcher_LoginPrefilledSecrets(t *testing.T) {
	f := newFixture(t)
	f.host.RequireExternalCookie()

	cfg := f.configuration("sso")
	cfg.ExternalAuth = &domain.ExternalAuthConfig{
		AuthURL:        f.host.ExternalAuthURL(),
		SecretPostVars: []string{"password"},
	}
	p := &fakePrompter{}

	_, err := f.dispatcher(newTestStore(t), p, "", "").Login(context.Background(), cfg, LoginOptions{
		Password: "secret",
		Secrets:  map[string]string{"password": "proxy-pass"},
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if len(p.asked) != 0 {
		t.Errorf("prompts = %v, want none", p.asked)
	}
}
