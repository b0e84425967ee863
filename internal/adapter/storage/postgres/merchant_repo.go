package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

const merchantColumns = `id, name, business_name, email, website, status, tier,
	api_key, api_secret_enc, webhook_url, webhook_secret_enc, settings,
	last_activity_at, created_at, updated_at`

// Create inserts a new merchant. Settings land in a jsonb column.
func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	settings, err := json.Marshal(m.Settings)
	if err != nil {
		return fmt.Errorf("marshal merchant settings: %w", err)
	}

	query := `INSERT INTO merchants (id, name, business_name, email, website, status, tier,
		api_key, api_secret_enc, webhook_url, webhook_secret_enc, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.pool.Exec(ctx, query,
		m.ID, m.Name, m.BusinessName, m.Email, m.Website, m.Status, m.Tier,
		m.APIKey, m.APISecretEnc, m.WebhookURL, m.WebhookSecretEnc, settings,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE id = $1`, merchantColumns)
	return r.scanMerchant(r.pool.QueryRow(ctx, query, id))
}

// GetByAPIKey fetches a merchant by its public API key.
func (r *MerchantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE api_key = $1`, merchantColumns)
	return r.scanMerchant(r.pool.QueryRow(ctx, query, apiKey))
}

// GetByEmail fetches a merchant by email.
func (r *MerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	query := fmt.Sprintf(`SELECT %s FROM merchants WHERE email = $1`, merchantColumns)
	return r.scanMerchant(r.pool.QueryRow(ctx, query, email))
}

func (r *MerchantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE merchants SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update merchant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

func (r *MerchantRepo) UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.MerchantSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal merchant settings: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE merchants SET settings = $1, updated_at = NOW() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("update merchant settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// UpdateWebhook replaces both the delivery URL and the encrypted signing
// secret in one statement.
func (r *MerchantRepo) UpdateWebhook(ctx context.Context, id uuid.UUID, url, secretEnc string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE merchants SET webhook_url = $1, webhook_secret_enc = $2, updated_at = NOW() WHERE id = $3`,
		url, secretEnc, id)
	if err != nil {
		return fmt.Errorf("update merchant webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// UpdateKeys swaps the API key pair.
func (r *MerchantRepo) UpdateKeys(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE merchants SET api_key = $1, api_secret_enc = $2, updated_at = NOW() WHERE id = $3`,
		apiKey, apiSecretEnc, id)
	if err != nil {
		return fmt.Errorf("update merchant keys: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// TouchActivity stamps the merchant's last authorized request time.
func (r *MerchantRepo) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE merchants SET last_activity_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch merchant activity: %w", err)
	}
	return nil
}

func (r *MerchantRepo) scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	var settings []byte
	err := row.Scan(
		&m.ID, &m.Name, &m.BusinessName, &m.Email, &m.Website, &m.Status, &m.Tier,
		&m.APIKey, &m.APISecretEnc, &m.WebhookURL, &m.WebhookSecretEnc, &settings,
		&m.LastActivityAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan merchant: %w", err)
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &m.Settings); err != nil {
			return nil, fmt.Errorf("decode merchant settings: %w", err)
		}
	}
	return m, nil
}
