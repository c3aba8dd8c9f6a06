package service

import (
	"context"
	"errors"
	"time"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/connection"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/storage/sessionfile"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/metric"
)

// DefaultSessionTimeout is how long a persisted session stays usable,
// measured from its creation.
const DefaultSessionTimeout = 12 * time.Hour

// RecordStore defines the storage interface for session records.
// sessionfile.Manager implements it.
type RecordStore interface {
	Create(createdAt time.Time, data []byte) (*sessionfile.Info, error)
	Read(info *sessionfile.Info) ([]byte, error)
	Prune() (*sessionfile.Info, []*sessionfile.Info, error)
	Remove(info *sessionfile.Info) error
	RemoveAll() (int, error)
}

// ClientFactory returns a fresh transport for a restored session.
type ClientFactory func() (*connection.HTTPClient, error)

// PersistenceOptions configures a PersistenceManager.
type PersistenceOptions struct {
	Records   RecordStore
	NewClient ClientFactory
	Timeout   time.Duration
	Now       func() time.Time
	Metrics   *metric.Registry
	Logger    logger.Logger
}

// PersistenceManager owns the single active session slot. The slot is
// either empty or holds one session and its creation time; the newest
// record on disk backs it across processes.
type PersistenceManager struct {
	records   RecordStore
	newClient ClientFactory
	timeout   time.Duration
	now       func() time.Time
	metrics   *metric.Registry
	log       logger.Logger

	session   *connection.HostSession
	createdAt time.Time
}

// NewPersistenceManager creates a PersistenceManager. The slot starts
// unloaded; nothing is read until GetActiveSession.
func NewPersistenceManager(opts PersistenceOptions) *PersistenceManager {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &PersistenceManager{
		records:   opts.Records,
		newClient: opts.NewClient,
		timeout:   timeout,
		now:       now,
		metrics:   opts.Metrics,
		log:       log.With("component", "persistence"),
	}
}

// Timeout returns the session timeout.
func (m *PersistenceManager) Timeout() time.Duration {
	return m.timeout
}

// CreatedAt returns when the cached session was persisted, or the zero
// time when the slot is not loaded.
func (m *PersistenceManager) CreatedAt() time.Time {
	return m.createdAt
}

// ExpiresAt returns when the cached session stops being usable.
func (m *PersistenceManager) ExpiresAt() time.Time {
	if m.createdAt.IsZero() {
		return time.Time{}
	}
	return m.createdAt.Add(m.timeout)
}

// SetActiveSession persists s as the only active session. It returns false
// without touching disk when the host does not honor s. Older records are
// deleted before the new one is written.
func (m *PersistenceManager) SetActiveSession(ctx context.Context, s *connection.HostSession) (bool, error) {
	if !s.LivenessCheck(ctx) {
		m.log.Debug("refusing to persist a session that fails the liveness check",
			"configuration", s.ConfigurationName())
		return false, nil
	}

	data, err := domain.EncodeDescriptor(s.Descriptor())
	if err != nil {
		return false, domain.ErrSessionStorage.WithCause(err)
	}

	if n, err := m.records.RemoveAll(); err != nil {
		return false, domain.ErrSessionStorage.WithCause(err)
	} else if n > 0 {
		m.log.Debug("removed previous session records", "count", n)
	}

	createdAt := m.now().UTC()
	info, err := m.records.Create(createdAt, data)
	if err != nil {
		return false, domain.ErrSessionStorage.WithCause(err)
	}

	m.session = s
	m.createdAt = createdAt
	m.metrics.ObserveActivation()
	m.log.Info("session activated", "configuration", s.ConfigurationName(), "record", info.Name)
	return true, nil
}

// GetActiveSession returns the active session. The first call in a process
// loads the newest record from disk, deleting every older one, and
// validates it: an expired, undecodable or revoked record is deleted and
// reported as ErrNoActiveSession tagged with the cause.
func (m *PersistenceManager) GetActiveSession(ctx context.Context) (*connection.HostSession, error) {
	if m.session != nil {
		return m.session, nil
	}

	info, removed, err := m.records.Prune()
	if errors.Is(err, sessionfile.ErrNoRecords) {
		return nil, m.noSession(domain.NoSessionMissing, nil, nil)
	}
	if err != nil {
		return nil, domain.ErrSessionStorage.WithCause(err)
	}
	if len(removed) > 0 {
		m.log.Debug("pruned stale session records", "count", len(removed), "kept", info.Name)
	}

	if !info.Valid {
		return nil, m.noSession(domain.NoSessionUndeserializable, info, sessionfile.ErrBadName)
	}
	if age := m.now().Sub(info.CreatedAt); age > m.timeout {
		return nil, m.noSession(domain.NoSessionExpired, info, nil)
	}

	data, err := m.records.Read(info)
	if err != nil {
		return nil, m.noSession(domain.NoSessionUndeserializable, info, err)
	}
	d, tok, err := domain.DecodeDescriptor(data)
	if err != nil {
		return nil, m.noSession(domain.NoSessionUndeserializable, info, err)
	}

	client, err := m.newClient()
	if err != nil {
		return nil, err
	}
	s := connection.FromDescriptor(d, tok, client)

	if !s.LivenessCheck(ctx) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, m.noSession(domain.NoSessionRevoked, info, nil)
	}

	m.session = s
	m.createdAt = info.CreatedAt
	m.metrics.ObserveSessionLoad("ok")
	m.log.Debug("session loaded", "configuration", s.ConfigurationName(), "record", info.Name)
	return s, nil
}

// noSession deletes info, if any, and builds the tagged error.
func (m *PersistenceManager) noSession(cause domain.NoSessionCause, info *sessionfile.Info, err error) error {
	m.metrics.ObserveSessionLoad(string(cause))
	if info != nil {
		if rmErr := m.records.Remove(info); rmErr != nil {
			m.log.Warn("failed to remove session record", "record", info.Name, "error", rmErr)
		}
		m.log.Debug("discarded session record", "record", info.Name, "cause", cause, "error", err)
	}
	return domain.NoActiveSession(cause, err)
}

// UnsetActiveSession deletes every record and empties the slot. It returns
// the configuration name of the session that was active, or "" when there
// was none. The host is not contacted.
func (m *PersistenceManager) UnsetActiveSession() (string, error) {
	name := ""
	if m.session != nil {
		name = m.session.ConfigurationName()
	} else {
		name = m.storedName()
	}

	if err := m.Reset(); err != nil {
		return "", err
	}
	return name, nil
}

// storedName returns the configuration name recorded in the newest
// record, or "" when it cannot be read.
func (m *PersistenceManager) storedName() string {
	info, _, err := m.records.Prune()
	if err != nil || !info.Valid {
		return ""
	}
	data, err := m.records.Read(info)
	if err != nil {
		return ""
	}
	d, _, err := domain.DecodeDescriptor(data)
	if err != nil {
		return ""
	}
	return d.ConfigurationName
}

// Reset empties the slot and deletes every record without contacting the
// host.
func (m *PersistenceManager) Reset() error {
	m.session = nil
	m.createdAt = time.Time{}
	n, err := m.records.RemoveAll()
	if err != nil {
		return domain.ErrSessionStorage.WithCause(err)
	}
	if n > 0 {
		m.log.Debug("session records removed", "count", n)
	}
	return nil
}
