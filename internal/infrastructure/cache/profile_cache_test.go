package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domainerrors "github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
)

// stubProfileRepo counts store hits so tests can tell cache hits from
// fallthroughs.
type stubProfileRepo struct {
	profiles map[uuid.UUID]*fraud.UserRiskProfile
	gets     int
	saves    int
	saveErr  error
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{profiles: make(map[uuid.UUID]*fraud.UserRiskProfile)}
}

func (s *stubProfileRepo) Get(_ context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	s.gets++
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domainerrors.ErrProfileNotFound
	}
	return p, nil
}

func (s *stubProfileRepo) Save(_ context.Context, p *fraud.UserRiskProfile) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.profiles[p.UserID] = p
	return nil
}

func newTestCache(t *testing.T) (*CachedProfileRepository, *stubProfileRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := newStubProfileRepo()
	cached := NewCachedProfileRepository(store, client, 5*time.Minute, zaptest.NewLogger(t))
	return cached, store, mr
}

func testProfile(userID uuid.UUID) *fraud.UserRiskProfile {
	return &fraud.UserRiskProfile{
		UserID:           userID,
		PaymentRisk:      30,
		AccountRisk:      20,
		UsageRisk:        10,
		VelocityRisk:     15,
		OverallRiskScore: 23,
		RiskLevel:        fraud.RiskLow,
		LastCalculatedAt: time.Now().UTC().Truncate(time.Second),
		Version:          3,
	}
}

func TestCachedProfileRepository_ReadThrough(t *testing.T) {
	cached, store, _ := newTestCache(t)
	userID := uuid.New()
	store.profiles[userID] = testProfile(userID)

	first, err := cached.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)

	// Second read is served from Redis.
	second, err := cached.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, first.OverallRiskScore, second.OverallRiskScore)
	assert.Equal(t, first.Version, second.Version)
}

func TestCachedProfileRepository_MissPropagatesNotFound(t *testing.T) {
	cached, _, _ := newTestCache(t)

	_, err := cached.Get(context.Background(), uuid.New())
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestCachedProfileRepository_SaveRefreshesCache(t *testing.T) {
	cached, store, _ := newTestCache(t)
	userID := uuid.New()
	profile := testProfile(userID)

	require.NoError(t, cached.Save(context.Background(), profile))
	assert.Equal(t, 1, store.saves)

	got, err := cached.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 0, store.gets)
	assert.Equal(t, profile.OverallRiskScore, got.OverallRiskScore)
}

func TestCachedProfileRepository_SaveConflictInvalidates(t *testing.T) {
	cached, store, mr := newTestCache(t)
	userID := uuid.New()
	profile := testProfile(userID)

	require.NoError(t, cached.Save(context.Background(), profile))
	require.True(t, mr.Exists(profileKeyPrefix+userID.String()))

	store.saveErr = domainerrors.ErrProfileConflict
	err := cached.Save(context.Background(), profile)
	assert.True(t, domainerrors.IsConflict(err))
	assert.False(t, mr.Exists(profileKeyPrefix+userID.String()))
}

func TestCachedProfileRepository_CorruptEntryFallsThrough(t *testing.T) {
	cached, store, mr := newTestCache(t)
	userID := uuid.New()
	store.profiles[userID] = testProfile(userID)

	require.NoError(t, mr.Set(profileKeyPrefix+userID.String(), "not-json"))

	got, err := cached.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 23, got.OverallRiskScore)
}

func TestCachedProfileRepository_RedisDownFallsThrough(t *testing.T) {
	cached, store, mr := newTestCache(t)
	userID := uuid.New()
	store.profiles[userID] = testProfile(userID)

	mr.Close()

	got, err := cached.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, userID, got.UserID)
}
