package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, merchant_id, user_id, agent_id, mandate_id, type, status,
	amount, currency, metadata, requested_at, authorized_at, completed_at,
	failed_at, failure_reason, gateway_transaction_id`

// Create inserts a new transaction record.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, merchant_id, user_id, agent_id, mandate_id, type, status,
		amount, currency, metadata, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.MerchantID, t.UserID, t.AgentID, t.MandateID, t.Type, t.Status,
		t.Amount, t.Currency, t.Metadata, t.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)
	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus performs a conditional transition from `from` to `to`. The
// WHERE clause on the current status makes concurrent writers settle on
// exactly one winner; a false return means the row had already moved on.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, upd ports.TransactionStatusUpdate) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	var tsColumn string
	switch to {
	case domain.TransactionStatusAuthorized:
		tsColumn = "authorized_at"
	case domain.TransactionStatusCompleted, domain.TransactionStatusRefunded:
		tsColumn = "completed_at"
	default:
		tsColumn = "failed_at"
	}

	query := fmt.Sprintf(`UPDATE transactions
		SET status = $1, %s = $2, failure_reason = COALESCE($3, failure_reason),
		    gateway_transaction_id = COALESCE($4, gateway_transaction_id)
		WHERE id = $5 AND status = $6`, tsColumn)

	tag, err := r.pool.Exec(ctx, query, to, upd.At, upd.FailureReason, upd.GatewayTransactionID, id, from)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List fetches transactions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("requested_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := rows.Scan(
			&t.ID, &t.MerchantID, &t.UserID, &t.AgentID, &t.MandateID, &t.Type, &t.Status,
			&t.Amount, &t.Currency, &t.Metadata, &t.RequestedAt, &t.AuthorizedAt, &t.CompletedAt,
			&t.FailedAt, &t.FailureReason, &t.GatewayTransactionID,
		); err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// SumCompletedByMandate sums completed amounts under a mandate in [since, until).
func (r *TransactionRepo) SumCompletedByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE mandate_id = $1 AND type = ANY($2) AND status = 'completed'
		AND requested_at >= $3 AND requested_at < $4`

	var sum float64
	if err := r.pool.QueryRow(ctx, query, mandateID, typeStrings(types), since, until).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum completed by mandate: %w", err)
	}
	return sum, nil
}

// SumCompletedByMerchant sums completed amounts across all of a merchant's
// mandates in [since, until).
func (r *TransactionRepo) SumCompletedByMerchant(ctx context.Context, merchantID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE merchant_id = $1 AND type = ANY($2) AND status = 'completed'
		AND requested_at >= $3 AND requested_at < $4`

	var sum float64
	if err := r.pool.QueryRow(ctx, query, merchantID, typeStrings(types), since, until).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum completed by merchant: %w", err)
	}
	return sum, nil
}

// CountByMandate counts transactions under a mandate since an instant,
// regardless of status. A nil type list counts everything.
func (r *TransactionRepo) CountByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM transactions
		WHERE mandate_id = $1 AND requested_at >= $2`
	args := []any{mandateID, since}
	if len(types) > 0 {
		query += ` AND type = ANY($3)`
		args = append(args, typeStrings(types))
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count by mandate: %w", err)
	}
	return count, nil
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.MerchantID, &t.UserID, &t.AgentID, &t.MandateID, &t.Type, &t.Status,
		&t.Amount, &t.Currency, &t.Metadata, &t.RequestedAt, &t.AuthorizedAt, &t.CompletedAt,
		&t.FailedAt, &t.FailureReason, &t.GatewayTransactionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func typeStrings(types []domain.TransactionType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
