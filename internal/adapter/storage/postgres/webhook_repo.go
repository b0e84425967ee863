package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

const webhookColumns = `id, merchant_id, event, payload, signature, url, attempts,
	last_attempt_at, next_attempt_at, delivered_at, failed_at, failure_reason,
	response_status, response_body, created_at, updated_at`

// Create inserts a new delivery due at next_attempt_at.
func (r *WebhookRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries (id, merchant_id, event, payload, signature, url,
		attempts, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.MerchantID, d.Event, d.Payload, d.Signature, d.URL,
		d.Attempts, d.NextAttemptAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// GetByID fetches one delivery.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_deliveries WHERE id = $1`, webhookColumns)
	return r.scanDelivery(r.pool.QueryRow(ctx, query, id))
}

// GetPending returns non-terminal deliveries due at or before now, oldest
// due first.
func (r *WebhookRepo) GetPending(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_deliveries
		WHERE delivered_at IS NULL AND failed_at IS NULL
		AND attempts < $1 AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC LIMIT $3`, webhookColumns)

	rows, err := r.pool.Query(ctx, query, domain.MaxDeliveryAttempts, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending webhooks: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.WebhookDelivery
	for rows.Next() {
		d := domain.WebhookDelivery{}
		if err := r.scanDeliveryRow(rows, &d); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook rows: %w", err)
	}
	return deliveries, nil
}

// MarkDelivered records success, conditioned on the attempt counter the
// caller observed so only one racer wins.
func (r *WebhookRepo) MarkDelivered(ctx context.Context, id uuid.UUID, priorAttempts int, at time.Time, responseStatus int, responseBody string) (bool, error) {
	query := `UPDATE webhook_deliveries
		SET attempts = attempts + 1, last_attempt_at = $1, delivered_at = $1,
		    next_attempt_at = NULL, response_status = $2, response_body = $3, updated_at = $1
		WHERE id = $4 AND attempts = $5 AND delivered_at IS NULL AND failed_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, at, responseStatus, responseBody, id, priorAttempts)
	if err != nil {
		return false, fmt.Errorf("mark webhook delivered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailedAttempt increments the attempt counter and either schedules the
// next retry or, when outcome.NextAttemptAt is nil, permanently fails the
// delivery.
func (r *WebhookRepo) MarkFailedAttempt(ctx context.Context, id uuid.UUID, priorAttempts int, outcome ports.AttemptOutcome) (bool, error) {
	var failedAt *time.Time
	if outcome.NextAttemptAt == nil {
		failedAt = &outcome.At
	}

	query := `UPDATE webhook_deliveries
		SET attempts = attempts + 1, last_attempt_at = $1, next_attempt_at = $2,
		    failed_at = $3, failure_reason = $4,
		    response_status = COALESCE($5, response_status),
		    response_body = COALESCE($6, response_body), updated_at = $1
		WHERE id = $7 AND attempts = $8 AND delivered_at IS NULL AND failed_at IS NULL`

	tag, err := r.pool.Exec(ctx, query,
		outcome.At, outcome.NextAttemptAt, failedAt, outcome.FailureReason,
		outcome.ResponseStatus, outcome.ResponseBody, id, priorAttempts)
	if err != nil {
		return false, fmt.Errorf("mark webhook attempt failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByMerchant returns the merchant's delivery log, newest first.
func (r *WebhookRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.WebhookDelivery, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE merchant_id = $1`, merchantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count webhook deliveries: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM webhook_deliveries WHERE merchant_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, webhookColumns)

	rows, err := r.pool.Query(ctx, query, merchantID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.WebhookDelivery
	for rows.Next() {
		d := domain.WebhookDelivery{}
		if err := r.scanDeliveryRow(rows, &d); err != nil {
			return nil, 0, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate webhook rows: %w", err)
	}
	return deliveries, total, nil
}

func (r *WebhookRepo) scanDelivery(row pgx.Row) (*domain.WebhookDelivery, error) {
	d := &domain.WebhookDelivery{}
	err := row.Scan(
		&d.ID, &d.MerchantID, &d.Event, &d.Payload, &d.Signature, &d.URL, &d.Attempts,
		&d.LastAttemptAt, &d.NextAttemptAt, &d.DeliveredAt, &d.FailedAt, &d.FailureReason,
		&d.ResponseStatus, &d.ResponseBody, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan webhook delivery: %w", err)
	}
	return d, nil
}

func (r *WebhookRepo) scanDeliveryRow(rows pgx.Rows, d *domain.WebhookDelivery) error {
	if err := rows.Scan(
		&d.ID, &d.MerchantID, &d.Event, &d.Payload, &d.Signature, &d.URL, &d.Attempts,
		&d.LastAttemptAt, &d.NextAttemptAt, &d.DeliveredAt, &d.FailedAt, &d.FailureReason,
		&d.ResponseStatus, &d.ResponseBody, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return fmt.Errorf("scan webhook delivery row: %w", err)
	}
	return nil
}
