package fraud

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/values"
)

// memoryStore is an in-memory fake of every repository the engine needs,
// with per-query error injection for the failure-path tests.
type memoryStore struct {
	mu       sync.Mutex
	attempts []*fraud.PaymentAttempt
	profiles map[uuid.UUID]*fraud.UserRiskProfile
	patterns []*fraud.FraudPattern
	evidence map[uuid.UUID][]*fraud.ChargebackEvidence
	alerts   []*fraud.FraudAlert

	failCounts       bool
	failList         bool
	profileConflicts int
	competingBundle  []*fraud.ChargebackEvidence
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profiles: make(map[uuid.UUID]*fraud.UserRiskProfile),
		evidence: make(map[uuid.UUID][]*fraud.ChargebackEvidence),
	}
}

var errStoreDown = domainerrors.NewInternalError("store unavailable")

func (m *memoryStore) Save(_ context.Context, a *fraud.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Non-empty gateway references are unique; absent ones never collide,
	// mirroring the NULL semantics of the storage index.
	if a.GatewayReference != "" {
		for _, existing := range m.attempts {
			if existing.GatewayReference == a.GatewayReference {
				return domainerrors.NewConflictError("payment attempt already exists")
			}
		}
	}
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memoryStore) Update(_ context.Context, a *fraud.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.attempts {
		if existing.ID == a.ID {
			m.attempts[i] = a
			return nil
		}
	}
	return domainerrors.ErrAttemptNotFound
}

func (m *memoryStore) FindByGatewayReference(_ context.Context, ref string) (*fraud.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.GatewayReference == ref {
			return a, nil
		}
	}
	return nil, domainerrors.ErrAttemptNotFound
}

func (m *memoryStore) FindRecentByUser(_ context.Context, userID uuid.UUID, since time.Time) ([]*fraud.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errStoreDown
	}
	var out []*fraud.PaymentAttempt
	for _, a := range m.attempts {
		if a.UserID == userID && a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) CountRecentByUser(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCounts {
		return 0, errStoreDown
	}
	count := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) CountRecentFailedByUser(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCounts {
		return 0, errStoreDown
	}
	count := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.CreatedAt.After(since) && a.IsFailed() {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) CountDistinctUsersByMethodDigest(_ context.Context, digest values.Digest, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCounts {
		return 0, errStoreDown
	}
	users := make(map[uuid.UUID]struct{})
	for _, a := range m.attempts {
		if a.PaymentMethodDigest.Equal(digest) && a.CreatedAt.After(since) {
			users[a.UserID] = struct{}{}
		}
	}
	return len(users), nil
}

func (m *memoryStore) ListActive(_ context.Context) ([]*fraud.FraudPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errStoreDown
	}
	var out []*fraud.FraudPattern
	for _, p := range m.patterns {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) Upsert(_ context.Context, p *fraud.FraudPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.patterns {
		if existing.Key == p.Key {
			m.patterns[i] = p
			return nil
		}
	}
	m.patterns = append(m.patterns, p)
	return nil
}

func (m *memoryStore) Get(_ context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domainerrors.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memoryStore) saveProfile(p *fraud.UserRiskProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profileConflicts > 0 {
		m.profileConflicts--
		return domainerrors.ErrProfileConflict
	}
	existing, ok := m.profiles[p.UserID]
	if ok && existing.Version != p.Version {
		return domainerrors.ErrProfileConflict
	}
	clone := *p
	clone.Version++
	m.profiles[p.UserID] = &clone
	return nil
}

func (m *memoryStore) SaveBundle(_ context.Context, bundle []*fraud.ChargebackEvidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Simulates losing the write race: the competing bundle lands first
	// and this save reports the resulting uniqueness conflict.
	if m.competingBundle != nil {
		for _, ev := range m.competingBundle {
			m.evidence[ev.AttemptID] = append(m.evidence[ev.AttemptID], ev)
		}
		m.competingBundle = nil
		return domainerrors.NewConflictError("evidence bundle already exists")
	}
	for _, ev := range bundle {
		for _, existing := range m.evidence[ev.AttemptID] {
			if existing.EvidenceType == ev.EvidenceType {
				return domainerrors.NewConflictError("evidence bundle already exists")
			}
		}
	}
	for _, ev := range bundle {
		m.evidence[ev.AttemptID] = append(m.evidence[ev.AttemptID], ev)
	}
	return nil
}

func (m *memoryStore) FindByAttempt(_ context.Context, attemptID uuid.UUID) ([]*fraud.ChargebackEvidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evidence[attemptID], nil
}

func (m *memoryStore) Publish(_ context.Context, alert *fraud.FraudAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

// profileRepo adapts memoryStore to the ProfileRepository interface
// (Save has a different receiver name than the attempt Save).
type profileRepo struct{ store *memoryStore }

func (r profileRepo) Get(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	return r.store.Get(ctx, userID)
}

func (r profileRepo) Save(_ context.Context, p *fraud.UserRiskProfile) error {
	return r.store.saveProfile(p)
}

// seedAttempt inserts a historical attempt with a controlled timestamp
// and status.
func seedAttempt(store *memoryStore, userID uuid.UUID, createdAt time.Time, status fraud.AttemptStatus, score int) *fraud.PaymentAttempt {
	a := &fraud.PaymentAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    values.MustNewMoneyFromMinorUnits(1000, values.USD),
		IPAddress: "203.0.113.10",
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	a.FraudScore = score
	store.attempts = append(store.attempts, a)
	return a
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(store *memoryStore) *Engine {
	return NewEngine(
		Config{
			HomeCountry:         "US",
			HighValueMinorUnits: 50_000,
			LowValueMinorUnits:  2_000,
			AlertScoreThreshold: 80,
		},
		Deps{
			Attempts: store,
			Patterns: store,
			Profiles: profileRepo{store},
			Evidence: store,
			Alerts:   store,
			Logger:   discardLogger(),
		},
	)
}
