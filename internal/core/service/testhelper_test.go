package service

import (
	"context"
	"testing"
	"time"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection/hosttest"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/sessionfile"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/metric"
)

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testClientFactory() ClientFactory {
	return func() (*connection.HTTPClient, error) {
		return connection.NewHTTPClient(connection.HTTPClientOptions{
			Timeout: 5 * time.Second,
			Logger:  logger.Discard(),
		})
	}
}

// fixture is one fake host plus a session directory shared by every
// PersistenceManager it creates, standing in for separate processes.
type fixture struct {
	host    *hosttest.Server
	records *sessionfile.Manager
	clock   *fakeClock
	metrics *metric.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records, err := sessionfile.NewManager(sessionfile.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return &fixture{
		host:    hosttest.New(t),
		records: records,
		clock:   &fakeClock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)},
		metrics: metric.NewRegistry(),
	}
}

// manager returns a PersistenceManager with an empty slot, as a new
// process would have.
func (f *fixture) manager() *PersistenceManager {
	return NewPersistenceManager(PersistenceOptions{
		Records:   f.records,
		NewClient: testClientFactory(),
		Timeout:   DefaultSessionTimeout,
		Now:       f.clock.Now,
		Metrics:   f.metrics,
		Logger:    logger.Discard(),
	})
}

func (f *fixture) configuration(name string) domain.HostConfiguration {
	return domain.HostConfiguration{
		Name:       name,
		GraphQLURL: f.host.GraphQLURL(),
		GatewayURL: f.host.GatewayURL(),
		Username:   "alice",
	}
}

// login returns an authenticated session for a configuration named name.
func (f *fixture) login(t *testing.T, name string) *connection.HostSession {
	t.Helper()
	client, err := testClientFactory()()
	if err != nil {
		t.Fatal(err)
	}
	s := connection.NewFromConfiguration(f.configuration(name), client)
	if err := s.Authenticate(context.Background(), "alice", "secret", connection.AuthOptions{}); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return s
}

// writeRecord stores a descriptor for name directly, stamped at.
func (f *fixture) writeRecord(t *testing.T, at time.Time, name string) {
	t.Helper()
	data, err := domain.EncodeDescriptor(&domain.SessionDescriptor{
		ConfigurationName: name,
		GraphQLURL:        f.host.GraphQLURL(),
		GatewayURL:        f.host.GatewayURL(),
		Token:             f.host.Token(),
		ActiveRole:        "user",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.records.Create(at, data); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func (f *fixture) recordCount(t *testing.T) int {
	t.Helper()
	infos, err := f.records.List()
	if err != nil {
		t.Fatal(err)
	}
	return len(infos)
}

// fakePrompter answers prompts from a map keyed by label and records
// what was asked.
type fakePrompter struct {
	answers map[string]string
	asked   []string
}

func (p *fakePrompter) Input(label string) (string, error) {
	p.asked = append(p.asked, label)
	return p.answers[label], nil
}

func (p *fakePrompter) Secret(label string) (string, error) {
	p.asked = append(p.asked, label)
	return p.answers[label], nil
}
