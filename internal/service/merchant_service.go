package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
)

type merchantService struct {
	merchantRepo ports.MerchantRepository
	encSvc       ports.EncryptionService
}

// NewMerchantService creates a new merchant account management service.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	encSvc ports.EncryptionService,
) ports.MerchantService {
	return &merchantService{
		merchantRepo: merchantRepo,
		encSvc:       encSvc,
	}
}

// Register creates a merchant in pending status with tier-seeded settings.
// The API secret (and webhook secret, when a URL is given) are returned in
// plaintext exactly once; only ciphertext is persisted.
func (s *merchantService) Register(ctx context.Context, req ports.RegisterMerchantRequest) (*ports.MerchantCredentials, error) {
	existing, err := s.merchantRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	tier := req.Tier
	if tier == "" {
		tier = domain.MerchantTierStarter
	}

	apiKey, err := generateKey("mk_")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	apiSecret, err := generateKey("sk_")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api secret: %w", err))
	}
	apiSecretEnc, err := s.encSvc.Encrypt(apiSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt api secret: %w", err))
	}

	now := time.Now().UTC()
	merchant := &domain.Merchant{
		ID:           uuid.New(),
		Name:         req.Name,
		BusinessName: req.BusinessName,
		Email:        req.Email,
		Website:      req.Website,
		Status:       domain.MerchantStatusPending,
		Tier:         tier,
		APIKey:       apiKey,
		APISecretEnc: apiSecretEnc,
		Settings:     domain.DefaultSettingsForTier(tier),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var webhookSecret *string
	if req.WebhookURL != nil && *req.WebhookURL != "" {
		secret, err := generateKey("whsec_")
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
		}
		secretEnc, err := s.encSvc.Encrypt(secret)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("encrypt webhook secret: %w", err))
		}
		merchant.WebhookURL = req.WebhookURL
		merchant.WebhookSecretEnc = &secretEnc
		webhookSecret = &secret
	}

	if err := s.merchantRepo.Create(ctx, merchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create merchant: %w", err))
	}

	return &ports.MerchantCredentials{
		Merchant:      merchant,
		APIKey:        apiKey,
		APISecret:     apiSecret,
		WebhookSecret: webhookSecret,
	}, nil
}

func (s *merchantService) Get(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	return merchant, nil
}

func (s *merchantService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error {
	merchant, err := s.merchantRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(err)
	}
	if merchant == nil {
		return apperror.ErrNotFound("merchant")
	}
	if err := s.merchantRepo.UpdateStatus(ctx, id, status); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

func (s *merchantService) UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.MerchantSettings) error {
	merchant, err := s.merchantRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(err)
	}
	if merchant == nil {
		return apperror.ErrNotFound("merchant")
	}
	if err := s.merchantRepo.UpdateSettings(ctx, id, settings); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

// ConfigureWebhook sets the delivery URL and mints a fresh signing secret.
func (s *merchantService) ConfigureWebhook(ctx context.Context, id uuid.UUID, url string) (string, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, id)
	if err != nil {
		return "", apperror.InternalError(err)
	}
	if merchant == nil {
		return "", apperror.ErrNotFound("merchant")
	}

	secret, err := generateKey("whsec_")
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("encrypt webhook secret: %w", err))
	}

	if err := s.merchantRepo.UpdateWebhook(ctx, id, url, secretEnc); err != nil {
		return "", apperror.InternalError(err)
	}
	return secret, nil
}

// RotateKeys replaces the API key pair atomically. The old pair stops
// working the moment the update lands.
func (s *merchantService) RotateKeys(ctx context.Context, id uuid.UUID) (*ports.MerchantCredentials, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	apiKey, err := generateKey("mk_")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	apiSecret, err := generateKey("sk_")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api secret: %w", err))
	}
	apiSecretEnc, err := s.encSvc.Encrypt(apiSecret)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt api secret: %w", err))
	}

	if err := s.merchantRepo.UpdateKeys(ctx, id, apiKey, apiSecretEnc); err != nil {
		return nil, apperror.InternalError(err)
	}

	merchant.APIKey = apiKey
	merchant.APISecretEnc = apiSecretEnc

	return &ports.MerchantCredentials{
		Merchant:  merchant,
		APIKey:    apiKey,
		APISecret: apiSecret,
	}, nil
}

// generateKey returns prefix + 32 random bytes hex encoded.
func generateKey(prefix string) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
