package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// --- In-Memory Merchant Repo ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *inMemoryMerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.merchants {
		if existing.Email == m.Email {
			return fmt.Errorf("email already exists")
		}
	}
	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryMerchantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.APIKey == apiKey {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryMerchantRepo) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryMerchantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found")
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryMerchantRepo) UpdateSettings(ctx context.Context, id uuid.UUID, settings domain.MerchantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found")
	}
	m.Settings = settings
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryMerchantRepo) UpdateWebhook(ctx context.Context, id uuid.UUID, url string, secretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found")
	}
	m.WebhookURL = &url
	m.WebhookSecretEnc = &secretEnc
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryMerchantRepo) UpdateKeys(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found")
	}
	m.APIKey = apiKey
	m.APISecretEnc = apiSecretEnc
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryMerchantRepo) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found")
	}
	m.LastActivityAt = &at
	return nil
}

// activate flips a merchant straight to active, standing in for the
// out-of-band verification step that normally follows registration.
func (r *inMemoryMerchantRepo) activate(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.merchants[id]; ok {
		m.Status = domain.MerchantStatusActive
	}
}

// --- In-Memory Mandate Repo ---

type inMemoryMandateRepo struct {
	mu       sync.RWMutex
	mandates map[uuid.UUID]*domain.Mandate
}

func newInMemoryMandateRepo() *inMemoryMandateRepo {
	return &inMemoryMandateRepo{mandates: make(map[uuid.UUID]*domain.Mandate)}
}

func (r *inMemoryMandateRepo) Create(ctx context.Context, m *domain.Mandate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.mandates[m.ID] = &cp
	return nil
}

func (r *inMemoryMandateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mandate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mandates[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryMandateRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Mandate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Mandate
	for _, m := range r.mandates {
		if m.UserID == userID {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *inMemoryMandateRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MandateStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mandates[id]
	if !ok {
		return fmt.Errorf("mandate not found")
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryMandateRepo) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mandates[id]
	if !ok {
		return fmt.Errorf("mandate not found")
	}
	m.Status = domain.MandateStatusRevoked
	m.RevokedAt = &at
	m.RevokedReason = &reason
	m.UpdatedAt = at
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus, upd ports.TransactionStatusUpdate) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	at := upd.At
	switch to {
	case domain.TransactionStatusAuthorized:
		t.AuthorizedAt = &at
	case domain.TransactionStatusCompleted, domain.TransactionStatusRefunded:
		t.CompletedAt = &at
	default:
		t.FailedAt = &at
	}
	if upd.FailureReason != nil {
		t.FailureReason = upd.FailureReason
	}
	if upd.GatewayTransactionID != nil {
		t.GatewayTransactionID = upd.GatewayTransactionID
	}
	return true, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.RequestedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.RequestedAt.After(*params.To) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryTransactionRepo) SumCompletedByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	for _, t := range r.transactions {
		if t.MandateID != mandateID || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if !matchesType(t.Type, types) {
			continue
		}
		if t.RequestedAt.Before(since) || !t.RequestedAt.Before(until) {
			continue
		}
		if t.Amount != nil {
			sum += *t.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryTransactionRepo) SumCompletedByMerchant(ctx context.Context, merchantID uuid.UUID, types []domain.TransactionType, since, until time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	for _, t := range r.transactions {
		if t.MerchantID != merchantID || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if !matchesType(t.Type, types) {
			continue
		}
		if t.RequestedAt.Before(since) || !t.RequestedAt.Before(until) {
			continue
		}
		if t.Amount != nil {
			sum += *t.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryTransactionRepo) CountByMandate(ctx context.Context, mandateID uuid.UUID, types []domain.TransactionType, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.transactions {
		if t.MandateID != mandateID || t.RequestedAt.Before(since) {
			continue
		}
		if !matchesType(t.Type, types) {
			continue
		}
		count++
	}
	return count, nil
}

func matchesType(t domain.TransactionType, types []domain.TransactionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

// --- In-Memory Webhook Repo ---

type inMemoryWebhookRepo struct {
	mu         sync.RWMutex
	deliveries map[uuid.UUID]*domain.WebhookDelivery
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{deliveries: make(map[uuid.UUID]*domain.WebhookDelivery)}
}

func (r *inMemoryWebhookRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.deliveries[d.ID] = &cp
	return nil
}

func (r *inMemoryWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryWebhookRepo) GetPending(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []domain.WebhookDelivery
	for _, d := range r.deliveries {
		if d.IsTerminal() {
			continue
		}
		if d.NextAttemptAt == nil || d.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, *d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(*due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *inMemoryWebhookRepo) MarkDelivered(ctx context.Context, id uuid.UUID, priorAttempts int, at time.Time, responseStatus int, responseBody string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.IsTerminal() || d.Attempts != priorAttempts {
		return false, nil
	}
	d.Attempts++
	d.LastAttemptAt = &at
	d.DeliveredAt = &at
	d.NextAttemptAt = nil
	d.ResponseStatus = &responseStatus
	d.ResponseBody = &responseBody
	d.UpdatedAt = at
	return true, nil
}

func (r *inMemoryWebhookRepo) MarkFailedAttempt(ctx context.Context, id uuid.UUID, priorAttempts int, outcome ports.AttemptOutcome) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.IsTerminal() || d.Attempts != priorAttempts {
		return false, nil
	}
	d.Attempts++
	at := outcome.At
	d.LastAttemptAt = &at
	d.NextAttemptAt = outcome.NextAttemptAt
	if outcome.NextAttemptAt == nil {
		d.FailedAt = &at
	}
	reason := outcome.FailureReason
	d.FailureReason = &reason
	d.ResponseStatus = outcome.ResponseStatus
	d.ResponseBody = outcome.ResponseBody
	d.UpdatedAt = at
	return true, nil
}

func (r *inMemoryWebhookRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.WebhookDelivery, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WebhookDelivery
	for _, d := range r.deliveries {
		if d.MerchantID == merchantID {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.WebhookDelivery{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// setNextAttempt rewinds a delivery's retry clock so tests can drive the
// sweep without waiting out the real backoff.
func (r *inMemoryWebhookRepo) setNextAttempt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deliveries[id]; ok && !d.IsTerminal() {
		d.NextAttemptAt = &at
	}
}

// all returns a snapshot of every delivery, newest first.
func (r *inMemoryWebhookRepo) all() []domain.WebhookDelivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.WebhookDelivery, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email already exists")
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Agent Action Repo ---

type inMemoryAgentActionRepo struct {
	mu      sync.RWMutex
	actions []domain.AgentAction
}

func newInMemoryAgentActionRepo() *inMemoryAgentActionRepo {
	return &inMemoryAgentActionRepo{}
}

func (r *inMemoryAgentActionRepo) Create(ctx context.Context, a *domain.AgentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, *a)
	return nil
}

func (r *inMemoryAgentActionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AgentAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.AgentAction
	for i := len(r.actions) - 1; i >= 0; i-- {
		if r.actions[i].UserID == userID {
			result = append(result, r.actions[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
