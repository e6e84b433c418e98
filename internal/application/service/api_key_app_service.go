// Package service provides application-level services that orchestrate domain
// services and repositories.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/devportal/internal/application/dto"
	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/repository"
	domainservice "github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/internal/infrastructure/crypto"
	"github.com/turtacn/devportal/internal/infrastructure/monitoring"
	"github.com/turtacn/devportal/internal/infrastructure/policy"
	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// APIKeyAppService manages the API key lifecycle and request-time validation.
type APIKeyAppService interface {
	// CreateKey issues a new key. The response carries the plaintext secret
	// exactly once.
	CreateKey(ctx context.Context, req *dto.CreateAPIKeyRequest) (*dto.APIKeyCreatedResponse, error)

	// ValidateKey authenticates a presented secret and authorizes the
	// request's required permissions. Credential failures collapse to a
	// single unauthorized error; only permission failures are distinguished.
	ValidateKey(ctx context.Context, req *dto.ValidateKeyRequest) (*models.APIKey, error)

	// RotateKey replaces a key's credentials, carrying over its grants and
	// limits. The old key is revoked atomically with the new key's creation.
	RotateKey(ctx context.Context, id, userID string) (*dto.APIKeyCreatedResponse, error)

	// RevokeKey permanently disables a key. Revocation is terminal.
	RevokeKey(ctx context.Context, id, userID string) error

	// GetKey returns the safe view of one key.
	GetKey(ctx context.Context, id string) (*dto.APIKeyResponse, error)

	// ListKeys returns the safe views of a user's keys.
	ListKeys(ctx context.Context, userID string) ([]*dto.APIKeyResponse, error)

	// RecordUsage persists one authenticated request and publishes the
	// usage audit event.
	RecordUsage(ctx context.Context, req *dto.RecordUsageRequest) error
}

type apiKeyAppServiceImpl struct {
	repo       repository.APIKeyRepository
	hasher     *crypto.APIKeyHasher
	permission domainservice.PermissionService
	audit      domainservice.AuditService
	metrics    *monitoring.Metrics
	logger     logger.Logger
	now        func() time.Time
}

// NewAPIKeyAppService creates the API key application service. metrics may be
// nil in tests.
func NewAPIKeyAppService(
	repo repository.APIKeyRepository,
	hasher *crypto.APIKeyHasher,
	permission domainservice.PermissionService,
	audit domainservice.AuditService,
	metrics *monitoring.Metrics,
	log logger.Logger,
) APIKeyAppService {
	return &apiKeyAppServiceImpl{
		repo:       repo,
		hasher:     hasher,
		permission: permission,
		audit:      audit,
		metrics:    metrics,
		logger:     log.WithComponent("api_key_service"),
		now:        time.Now,
	}
}

// CreateKey issues a new key pair and persists the hashed half.
func (s *apiKeyAppServiceImpl) CreateKey(ctx context.Context, req *dto.CreateAPIKeyRequest) (*dto.APIKeyCreatedResponse, error) {
	for _, scope := range req.Scopes {
		if !policy.IsKnownScope(scope) {
			return nil, errors.ErrInvalidRequest("unknown scope: " + scope)
		}
	}
	if conflicts := s.permission.CheckScopeConflicts(req.Scopes); len(conflicts) > 0 {
		s.logger.Warn(ctx, "redundant scopes requested",
			logger.String("user_id", req.UserID),
			logger.Any("redundant", conflicts))
	}

	keyID, secretKey, keyHash, err := s.hasher.GenerateKeyPair()
	if err != nil {
		s.logger.Error(ctx, "failed to generate key pair", err)
		return nil, errors.ErrServerError("failed to generate credentials").WithCause(err)
	}

	now := s.now().UTC()
	key := &models.APIKey{
		ID:              uuid.NewString(),
		KeyID:           keyID,
		KeyHash:         keyHash,
		Name:            req.Name,
		UserID:          req.UserID,
		Scopes:          req.Scopes,
		Status:          constants.APIKeyStatusActive,
		AllowedIPs:      req.AllowedIPs,
		RateLimit:       req.RateLimit,
		RateLimitPeriod: req.RateLimitPeriod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.ExpiresInDays > 0 {
		expires := now.AddDate(0, 0, req.ExpiresInDays)
		key.ExpiresAt = &expires
	}

	if err := s.repo.Create(ctx, key); err != nil {
		s.logger.Error(ctx, "failed to persist api key", err, logger.String("key_id", keyID))
		return nil, errors.ErrServerError("failed to create api key").WithCause(err)
	}

	s.logger.Info(ctx, "api key created",
		logger.String("key_id", keyID),
		logger.String("user_id", req.UserID),
		logger.Any("scopes", req.Scopes))
	s.recordKeyEvent(ctx, constants.EventTypeKeyCreated, key, nil)

	return &dto.APIKeyCreatedResponse{
		APIKeyResponse: *dto.NewAPIKeyResponse(key),
		SecretKey:      secretKey,
	}, nil
}

// ValidateKey authenticates the presented secret. The stored hash depends on
// the app secret, so there is no index to look it up by; validation hashes the
// candidate once and scans the usable keys for a constant-time match.
func (s *apiKeyAppServiceImpl) ValidateKey(ctx context.Context, req *dto.ValidateKeyRequest) (*models.APIKey, error) {
	start := s.now()

	key, err := s.findBySecret(ctx, req.SecretKey)
	if err != nil {
		s.observeAuth("rejected", start)
		s.recordAuthFailure(ctx, req.ClientIP)
		return nil, err
	}

	if !key.IPAllowed(req.ClientIP) {
		s.logger.Warn(ctx, "api key used from disallowed ip",
			logger.String("key_id", key.KeyID),
			logger.String("client_ip", req.ClientIP))
		s.observeAuth("rejected", start)
		s.recordAuthFailure(ctx, req.ClientIP)
		return nil, errors.ErrUnauthorized("invalid API key")
	}

	for _, required := range req.RequiredPermissions {
		perm, err := policy.ParsePermission(required)
		if err != nil {
			s.observeAuth("forbidden", start)
			return nil, errors.ErrForbidden(required)
		}
		if !s.permission.HasPermission(key.Scopes, perm.Resource, perm.Action) {
			s.observeAuth("forbidden", start)
			return nil, errors.ErrForbidden(required)
		}
	}

	if key.RateLimit > 0 {
		since := s.now().Add(-key.WindowDuration())
		used, err := s.repo.CountUsageSince(ctx, key.ID, since)
		if err != nil {
			// Availability over strictness: the windowed limit is skipped
			// when the count is unavailable.
			s.logger.Error(ctx, "failed to count key usage", err, logger.String("key_id", key.KeyID))
		} else if used >= int64(key.RateLimit) {
			s.observeAuth("rate_limited", start)
			retryAfter := key.WindowDuration().Seconds()
			return nil, errors.ErrRateLimitExceeded(retryAfter).
				WithMetadata("key_id", key.KeyID)
		}
	}

	lastUsed := s.now().UTC()
	key.LastUsedAt = &lastUsed
	key.TotalRequests++
	if err := s.repo.Update(ctx, key); err != nil {
		s.logger.Warn(ctx, "failed to update key usage stamp", logger.String("key_id", key.KeyID))
	}

	s.observeAuth("accepted", start)
	return key, nil
}

// findBySecret scans the usable keys for a constant-time hash match.
func (s *apiKeyAppServiceImpl) findBySecret(ctx context.Context, secret string) (*models.APIKey, error) {
	if !crypto.HasSecretPrefix(secret) {
		return nil, errors.ErrUnauthorized("invalid API key")
	}

	candidates, err := s.repo.FindValidationCandidates(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "failed to load validation candidates", err)
		return nil, errors.ErrServiceUnavailable("validation unavailable").WithCause(err)
	}

	now := s.now()
	for _, candidate := range candidates {
		if !candidate.IsUsable(now) {
			continue
		}
		if s.hasher.VerifySecret(secret, candidate.KeyHash) {
			return candidate, nil
		}
	}
	return nil, errors.ErrUnauthorized("invalid API key")
}

// RotateKey creates the successor and revokes the predecessor in one
// transaction, so no interleaving observes both keys active or neither.
func (s *apiKeyAppServiceImpl) RotateKey(ctx context.Context, id, userID string) (*dto.APIKeyCreatedResponse, error) {
	keyID, secretKey, keyHash, err := s.hasher.GenerateKeyPair()
	if err != nil {
		return nil, errors.ErrServerError("failed to generate credentials").WithCause(err)
	}

	var successor *models.APIKey
	err = s.repo.Transaction(ctx, func(tx repository.APIKeyRepository) error {
		old, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if old.UserID != userID {
			return errors.ErrNotFound("api key")
		}
		if old.Status == constants.APIKeyStatusRevoked {
			return errors.ErrConflict("cannot rotate a revoked key")
		}

		now := s.now().UTC()
		successor = &models.APIKey{
			ID:              uuid.NewString(),
			KeyID:           keyID,
			KeyHash:         keyHash,
			Name:            old.Name,
			UserID:          old.UserID,
			Scopes:          old.Scopes,
			Status:          constants.APIKeyStatusActive,
			AllowedIPs:      old.AllowedIPs,
			RateLimit:       old.RateLimit,
			RateLimitPeriod: old.RateLimitPeriod,
			ExpiresAt:       old.ExpiresAt,
			RotatedFrom:     old.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(ctx, successor); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, old.ID, constants.APIKeyStatusRevoked)
	})
	if err != nil {
		if appErr, ok := err.(errors.AppError); ok {
			return nil, appErr
		}
		s.logger.Error(ctx, "key rotation failed", err, logger.String("id", id))
		return nil, errors.ErrServerError("failed to rotate api key").WithCause(err)
	}

	s.logger.Info(ctx, "api key rotated",
		logger.String("old_id", id),
		logger.String("new_key_id", keyID))
	s.recordKeyEvent(ctx, constants.EventTypeKeyRotated, successor,
		map[string]interface{}{"rotated_from": id})

	return &dto.APIKeyCreatedResponse{
		APIKeyResponse: *dto.NewAPIKeyResponse(successor),
		SecretKey:      secretKey,
	}, nil
}

// RevokeKey transitions a key to revoked. Already-revoked keys conflict.
func (s *apiKeyAppServiceImpl) RevokeKey(ctx context.Context, id, userID string) error {
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if key.UserID != userID {
		return errors.ErrNotFound("api key")
	}
	if key.Status == constants.APIKeyStatusRevoked {
		return errors.ErrConflict("key already revoked")
	}

	if err := s.repo.UpdateStatus(ctx, id, constants.APIKeyStatusRevoked); err != nil {
		return err
	}

	s.logger.Info(ctx, "api key revoked", logger.String("key_id", key.KeyID))
	s.recordKeyEvent(ctx, constants.EventTypeKeyRevoked, key, nil)
	return nil
}

// GetKey returns one key's safe view.
func (s *apiKeyAppServiceImpl) GetKey(ctx context.Context, id string) (*dto.APIKeyResponse, error) {
	key, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewAPIKeyResponse(key), nil
}

// ListKeys returns safe views of all keys owned by the user.
func (s *apiKeyAppServiceImpl) ListKeys(ctx context.Context, userID string) ([]*dto.APIKeyResponse, error) {
	keys, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, dto.NewAPIKeyResponse(key))
	}
	return out, nil
}

// RecordUsage persists one usage row and emits the usage audit event.
func (s *apiKeyAppServiceImpl) RecordUsage(ctx context.Context, req *dto.RecordUsageRequest) error {
	usage := &models.APIKeyUsage{
		ID:         uuid.NewString(),
		APIKeyID:   req.APIKeyID,
		Method:     req.Method,
		Endpoint:   req.Endpoint,
		StatusCode: req.StatusCode,
		DurationMs: req.DurationMs,
		ClientIP:   req.ClientIP,
		UserAgent:  req.UserAgent,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.RecordUsage(ctx, usage); err != nil {
		s.logger.Error(ctx, "failed to record usage", err, logger.String("api_key_id", req.APIKeyID))
		return err
	}

	if err := s.audit.LogEvent(ctx, models.AuditEvent{
		Type:       constants.EventTypeKeyUsed,
		APIKeyID:   req.APIKeyID,
		Method:     req.Method,
		Endpoint:   req.Endpoint,
		StatusCode: req.StatusCode,
		DurationMs: req.DurationMs,
		ClientIP:   req.ClientIP,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish usage event", logger.String("api_key_id", req.APIKeyID))
	}
	return nil
}

func (s *apiKeyAppServiceImpl) recordKeyEvent(ctx context.Context, eventType constants.AuditEventType, key *models.APIKey, detail map[string]interface{}) {
	if s.metrics != nil {
		s.metrics.RecordKeyOperation(eventType)
	}
	if err := s.audit.LogEvent(ctx, models.AuditEvent{
		Type:     eventType,
		APIKeyID: key.ID,
		UserID:   key.UserID,
		Detail:   detail,
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish audit event", logger.String("event", string(eventType)))
	}
}

func (s *apiKeyAppServiceImpl) recordAuthFailure(ctx context.Context, clientIP string) {
	if err := s.audit.LogEvent(ctx, models.AuditEvent{
		Type:     constants.EventTypeAuthFailed,
		ClientIP: clientIP,
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish auth failure event")
	}
}

func (s *apiKeyAppServiceImpl) observeAuth(result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordAuth(result, s.now().Sub(start))
	}
}
