package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/fraud"
	fraudservice "github.com/atlaspay/fraud-risk-engine/internal/service/fraud"
)

// CachedProfileRepository is a read-through decorator over a
// ProfileRepository. Reads are served from Redis when possible; every
// Save writes through and refreshes the cached copy, so the cache never
// outlives one recalculation. Cache failures degrade to the underlying
// store and are only logged.
type CachedProfileRepository struct {
	inner  fraudservice.ProfileRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProfileRepository wraps a profile repository with a Redis
// read-through cache.
func NewCachedProfileRepository(inner fraudservice.ProfileRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProfileRepository {
	return &CachedProfileRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

type cachedProfile struct {
	UserID              uuid.UUID       `json:"user_id"`
	PaymentRisk         int             `json:"payment_risk"`
	AccountRisk         int             `json:"account_risk"`
	UsageRisk           int             `json:"usage_risk"`
	VelocityRisk        int             `json:"velocity_risk"`
	OverallRiskScore    int             `json:"overall_risk_score"`
	RiskLevel           fraud.RiskLevel `json:"risk_level"`
	RequiresReview      bool            `json:"requires_review"`
	SuspiciousFlagCount int             `json:"suspicious_flag_count"`
	LastCalculatedAt    time.Time       `json:"last_calculated_at"`
	Version             int64           `json:"version"`
}

// Get returns the cached profile when fresh, falling back to the store.
func (c *CachedProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskProfile, error) {
	key := profileKeyPrefix + userID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedProfile
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached.toDomain(), nil
		}
		// Corrupt entry: drop it and fall through to the store.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("profile cache read failed, falling back to store",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	profile, err := c.inner.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, profile)
	return profile, nil
}

// Save writes through to the store and refreshes the cached copy.
func (c *CachedProfileRepository) Save(ctx context.Context, profile *fraud.UserRiskProfile) error {
	if err := c.inner.Save(ctx, profile); err != nil {
		// On conflict the cached copy is stale too; invalidate so the
		// retry re-reads from the store.
		c.client.Del(ctx, profileKeyPrefix+profile.UserID.String())
		return err
	}
	c.store(ctx, profile)
	return nil
}

func (c *CachedProfileRepository) store(ctx context.Context, p *fraud.UserRiskProfile) {
	raw, err := json.Marshal(fromDomain(p))
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKeyPrefix+p.UserID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache write failed",
			zap.String("user_id", p.UserID.String()),
			zap.Error(err))
	}
}

func fromDomain(p *fraud.UserRiskProfile) cachedProfile {
	return cachedProfile{
		UserID:              p.UserID,
		PaymentRisk:         p.PaymentRisk,
		AccountRisk:         p.AccountRisk,
		UsageRisk:           p.UsageRisk,
		VelocityRisk:        p.VelocityRisk,
		OverallRiskScore:    p.OverallRiskScore,
		RiskLevel:           p.RiskLevel,
		RequiresReview:      p.RequiresReview,
		SuspiciousFlagCount: p.SuspiciousFlagCount,
		LastCalculatedAt:    p.LastCalculatedAt,
		Version:             p.Version,
	}
}

func (c cachedProfile) toDomain() *fraud.UserRiskProfile {
	return &fraud.UserRiskProfile{
		UserID:              c.UserID,
		PaymentRisk:         c.PaymentRisk,
		AccountRisk:         c.AccountRisk,
		UsageRisk:           c.UsageRisk,
		VelocityRisk:        c.VelocityRisk,
		OverallRiskScore:    c.OverallRiskScore,
		RiskLevel:           c.RiskLevel,
		RequiresReview:      c.RequiresReview,
		SuspiciousFlagCount: c.SuspiciousFlagCount,
		LastCalculatedAt:    c.LastCalculatedAt,
		Version:             c.Version,
	}
}
