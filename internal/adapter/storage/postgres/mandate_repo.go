package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MandateRepo implements ports.MandateRepository.
type MandateRepo struct {
	pool Pool
}

// NewMandateRepo creates a new MandateRepo.
func NewMandateRepo(pool Pool) *MandateRepo {
	return &MandateRepo{pool: pool}
}

const mandateColumns = `id, user_id, agent_id, agent_name, type, status, constraints,
	valid_from, valid_until, created_at, updated_at, revoked_at, revoked_reason`

// Create inserts a new mandate. Constraints land in a jsonb column.
func (r *MandateRepo) Create(ctx context.Context, m *domain.Mandate) error {
	query := `INSERT INTO mandates (id, user_id, agent_id, agent_name, type, status, constraints,
		valid_from, valid_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.UserID, m.AgentID, m.AgentName, m.Type, m.Status, m.Constraints,
		m.ValidFrom, m.ValidUntil, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mandate: %w", err)
	}
	return nil
}

// GetByID fetches a mandate by UUID.
func (r *MandateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mandate, error) {
	query := fmt.Sprintf(`SELECT %s FROM mandates WHERE id = $1`, mandateColumns)
	return r.scanMandate(r.pool.QueryRow(ctx, query, id))
}

// ListByUser fetches all mandates a user has granted, newest first.
func (r *MandateRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Mandate, error) {
	query := fmt.Sprintf(`SELECT %s FROM mandates WHERE user_id = $1 ORDER BY created_at DESC`, mandateColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list mandates: %w", err)
	}
	defer rows.Close()

	var mandates []domain.Mandate
	for rows.Next() {
		m := domain.Mandate{}
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.AgentID, &m.AgentName, &m.Type, &m.Status, &m.Constraints,
			&m.ValidFrom, &m.ValidUntil, &m.CreatedAt, &m.UpdatedAt, &m.RevokedAt, &m.RevokedReason,
		); err != nil {
			return nil, fmt.Errorf("scan mandate row: %w", err)
		}
		mandates = append(mandates, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mandate rows: %w", err)
	}
	return mandates, nil
}

func (r *MandateRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MandateStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mandates SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update mandate status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mandate not found: %s", id)
	}
	return nil
}

// Revoke terminally disables the mandate and records the reason.
func (r *MandateRepo) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE mandates SET status = $1, revoked_at = $2, revoked_reason = $3, updated_at = NOW() WHERE id = $4`,
		domain.MandateStatusRevoked, at, reason, id)
	if err != nil {
		return fmt.Errorf("revoke mandate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mandate not found: %s", id)
	}
	return nil
}

func (r *MandateRepo) scanMandate(row pgx.Row) (*domain.Mandate, error) {
	m := &domain.Mandate{}
	err := row.Scan(
		&m.ID, &m.UserID, &m.AgentID, &m.AgentName, &m.Type, &m.Status, &m.Constraints,
		&m.ValidFrom, &m.ValidUntil, &m.CreatedAt, &m.UpdatedAt, &m.RevokedAt, &m.RevokedReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan mandate: %w", err)
	}
	return m, nil
}
