package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var cartTransactionTypes = []domain.TransactionType{
	domain.TransactionTypeCartAdd,
	domain.TransactionTypeCartUpdate,
	domain.TransactionTypeCartRemove,
}

// GatewayServiceImpl implements ports.GatewayService. Every operation runs
// the same pipeline: record a pending transaction, authorize against the
// mandate, drive the transaction to a terminal state, enqueue a webhook.
type GatewayServiceImpl struct {
	merchantRepo ports.MerchantRepository
	txRepo       ports.TransactionRepository
	mandateSvc   ports.MandateService
	gateway      ports.PaymentGateway
	webhookSvc   ports.WebhookService
	auditSvc     ports.AuditService
	log          zerolog.Logger
}

// NewGatewayService creates a new GatewayServiceImpl.
func NewGatewayService(
	merchantRepo ports.MerchantRepository,
	txRepo ports.TransactionRepository,
	mandateSvc ports.MandateService,
	gateway ports.PaymentGateway,
	webhookSvc ports.WebhookService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *GatewayServiceImpl {
	return &GatewayServiceImpl{
		merchantRepo: merchantRepo,
		txRepo:       txRepo,
		mandateSvc:   mandateSvc,
		gateway:      gateway,
		webhookSvc:   webhookSvc,
		auditSvc:     auditSvc,
		log:          log,
	}
}

// AuthorizeRequest checks whether an agent action may proceed and records
// the decision either way.
func (s *GatewayServiceImpl) AuthorizeRequest(ctx context.Context, merchant *domain.Merchant, req ports.AuthorizationRequest) (*ports.AuthorizationResult, error) {
	tx, err := s.createPending(ctx, merchant, req.UserID, req.AgentID, req.MandateID, req.TransactionType, req.Amount, req.Metadata)
	if err != nil {
		return nil, err
	}

	mandate, err := s.mandateSvc.ValidateAccess(ctx, req.MandateID, req.AgentID, "")
	if err != nil {
		msg := s.decline(ctx, tx, err)
		return &ports.AuthorizationResult{TransactionID: tx.ID, Message: msg}, nil
	}

	if req.Amount != nil && *req.Amount > merchant.Settings.MaxTransactionAmount {
		msg := s.decline(ctx, tx, apperror.ErrLimitExceeded(
			fmt.Sprintf("amount %.2f exceeds merchant maxTransactionAmount of %.2f", *req.Amount, merchant.Settings.MaxTransactionAmount)))
		return &ports.AuthorizationResult{TransactionID: tx.ID, Message: msg}, nil
	}

	now := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusAuthorized,
		ports.TransactionStatusUpdate{At: now}); err != nil {
		return nil, apperror.InternalError(err)
	}

	if err := s.merchantRepo.TouchActivity(ctx, merchant.ID, now); err != nil {
		s.log.Warn().Err(err).Str("merchant_id", merchant.ID.String()).Msg("failed to touch merchant activity")
	}

	return &ports.AuthorizationResult{
		Authorized:    true,
		TransactionID: tx.ID,
		Constraints: &ports.AuthorizationConstraints{
			MaxAmount:        merchant.Settings.MaxTransactionAmount,
			RequiresApproval: mandate.Type == domain.MandateTypeIntent,
		},
	}, nil
}

// VerifyMandate is the read-only authority check. It never records a
// transaction.
func (s *GatewayServiceImpl) VerifyMandate(ctx context.Context, req ports.VerifyMandateRequest) (*ports.MandateVerification, error) {
	mandate, err := s.mandateSvc.ValidateAccess(ctx, req.MandateID, req.AgentID, req.Type)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code != apperror.CodeInternal {
			reason := appErr.Message
			return &ports.MandateVerification{Valid: false, Reason: &reason}, nil
		}
		return nil, err
	}

	limits, err := s.remainingLimits(ctx, mandate)
	if err != nil {
		return nil, err
	}

	return &ports.MandateVerification{
		Valid:           true,
		Mandate:         mandate,
		RemainingLimits: limits,
	}, nil
}

// ProcessCartOperation records and executes one agent cart action.
func (s *GatewayServiceImpl) ProcessCartOperation(ctx context.Context, merchant *domain.Merchant, req ports.CartOperationRequest) (*ports.OperationResult, error) {
	if !merchant.SupportsMandateType(domain.MandateTypeCart) {
		return &ports.OperationResult{Success: false, Message: "merchant does not support cart mandates"}, nil
	}

	txType, err := cartOperationType(req.Operation)
	if err != nil {
		return nil, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"operation": req.Operation,
		"itemId":    req.ItemID,
		"itemName":  req.ItemName,
		"quantity":  req.Quantity,
		"category":  req.Category,
		"reasoning": req.Reasoning,
	})

	tx, err := s.createPending(ctx, merchant, req.UserID, req.AgentID, req.MandateID, txType, req.ItemValue, metadata)
	if err != nil {
		return nil, err
	}

	mandate, err := s.mandateSvc.ValidateAccess(ctx, req.MandateID, req.AgentID, domain.MandateTypeCart)
	if err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	if err := s.checkCartConstraints(ctx, mandate, req); err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	now := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusCompleted,
		ports.TransactionStatusUpdate{At: now}); err != nil {
		return nil, apperror.InternalError(err)
	}
	tx.Status = domain.TransactionStatusCompleted
	tx.CompletedAt = &now

	s.audit(ctx, tx, domain.ActionCartOperation, true, req.Reasoning)
	s.enqueueWebhook(ctx, merchant, domain.EventCartUpdated, map[string]any{
		"transactionId": tx.ID,
		"operation":     req.Operation,
		"itemId":        req.ItemID,
	})

	return &ports.OperationResult{Success: true, Transaction: tx}, nil
}

// ProcessIntentOperation records and executes one agent intent action.
// A created intent is auto-approved when its total is strictly under the
// mandate's autoApproveUnder threshold.
func (s *GatewayServiceImpl) ProcessIntentOperation(ctx context.Context, merchant *domain.Merchant, req ports.IntentOperationRequest) (*ports.OperationResult, error) {
	if !merchant.SupportsMandateType(domain.MandateTypeIntent) {
		return &ports.OperationResult{Success: false, Message: "merchant does not support intent mandates"}, nil
	}

	txType, event, err := intentOperationType(req.Operation)
	if err != nil {
		return nil, err
	}

	metadata, _ := json.Marshal(map[string]any{
		"operation":   req.Operation,
		"intentId":    req.IntentID,
		"description": req.Description,
		"reasoning":   req.Reasoning,
	})

	amount := req.Amount
	tx, err := s.createPending(ctx, merchant, req.UserID, req.AgentID, req.MandateID, txType, &amount, metadata)
	if err != nil {
		return nil, err
	}

	mandate, err := s.mandateSvc.ValidateAccess(ctx, req.MandateID, req.AgentID, domain.MandateTypeIntent)
	if err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	autoApproved := false
	var expiresAt *time.Time
	if req.Operation == "create" {
		var ttl time.Duration
		autoApproved, ttl, err = s.checkIntentConstraints(ctx, mandate, req.Amount)
		if err != nil {
			return s.declineResult(ctx, merchant, tx, err)
		}
		at := time.Now().UTC().Add(ttl)
		expiresAt = &at
	}

	now := time.Now().UTC()
	next := domain.TransactionStatusAuthorized
	if req.Operation != "create" || autoApproved {
		next = domain.TransactionStatusCompleted
	}
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, next,
		ports.TransactionStatusUpdate{At: now}); err != nil {
		return nil, apperror.InternalError(err)
	}
	tx.Status = next
	if next == domain.TransactionStatusCompleted {
		tx.CompletedAt = &now
	} else {
		tx.AuthorizedAt = &now
	}

	s.audit(ctx, tx, domain.ActionIntentCreate, true, req.Reasoning)

	data := map[string]any{
		"transactionId": tx.ID,
		"amount":        req.Amount,
		"autoApproved":  autoApproved,
	}
	if expiresAt != nil {
		data["expiresAt"] = *expiresAt
	}
	s.enqueueWebhook(ctx, merchant, event, data)
	if autoApproved {
		s.enqueueWebhook(ctx, merchant, domain.EventIntentApproved, data)
	}

	return &ports.OperationResult{Success: true, Transaction: tx, Data: data}, nil
}

// ProcessPayment records a payment attempt, authorizes it against the
// mandate, then charges the downstream processor.
func (s *GatewayServiceImpl) ProcessPayment(ctx context.Context, merchant *domain.Merchant, req ports.PaymentRequest) (*ports.OperationResult, error) {
	if !merchant.SupportsMandateType(domain.MandateTypePayment) {
		return &ports.OperationResult{Success: false, Message: "merchant does not support payment mandates"}, nil
	}

	metadata, _ := json.Marshal(map[string]any{
		"paymentMethod": req.PaymentMethod,
		"description":   req.Description,
		"reasoning":     req.Reasoning,
	})

	amount := req.Amount
	tx, err := s.createPending(ctx, merchant, req.UserID, req.AgentID, req.MandateID, domain.TransactionTypePaymentExec, &amount, metadata)
	if err != nil {
		return nil, err
	}
	tx.Currency = req.Currency

	mandate, err := s.mandateSvc.ValidateAccess(ctx, req.MandateID, req.AgentID, domain.MandateTypePayment)
	if err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	if req.Amount > merchant.Settings.MaxTransactionAmount {
		return s.declineResult(ctx, merchant, tx, apperror.ErrLimitExceeded(
			fmt.Sprintf("amount %.2f exceeds merchant maxTransactionAmount of %.2f", req.Amount, merchant.Settings.MaxTransactionAmount)))
	}

	if err := s.checkMerchantVolumeLimits(ctx, merchant, req.Amount); err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	if err := s.checkPaymentConstraints(ctx, mandate, req.Amount, req.PaymentMethod); err != nil {
		return s.declineResult(ctx, merchant, tx, err)
	}

	now := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusAuthorized,
		ports.TransactionStatusUpdate{At: now}); err != nil {
		return nil, apperror.InternalError(err)
	}
	tx.Status = domain.TransactionStatusAuthorized
	tx.AuthorizedAt = &now

	result, err := s.gateway.Charge(ctx, ports.ChargeRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		CardNumber:    req.CardNumber,
	})
	if err != nil {
		return s.failResult(ctx, merchant, tx, fmt.Sprintf("payment gateway unavailable: %v", err))
	}
	if !result.Succeeded {
		return s.failResult(ctx, merchant, tx, result.FailureReason)
	}

	completedAt := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusAuthorized, domain.TransactionStatusCompleted,
		ports.TransactionStatusUpdate{At: completedAt, GatewayTransactionID: &result.GatewayTransactionID}); err != nil {
		return nil, apperror.InternalError(err)
	}
	tx.Status = domain.TransactionStatusCompleted
	tx.CompletedAt = &completedAt
	tx.GatewayTransactionID = &result.GatewayTransactionID

	s.audit(ctx, tx, domain.ActionPaymentExecute, true, req.Reasoning)
	s.enqueueWebhook(ctx, merchant, domain.EventPaymentCompleted, map[string]any{
		"transactionId":        tx.ID,
		"amount":               req.Amount,
		"currency":             req.Currency,
		"gatewayTransactionId": result.GatewayTransactionID,
	})

	return &ports.OperationResult{Success: true, Transaction: tx}, nil
}

// RefundPayment reverses a completed payment through the downstream
// processor and records a refund transaction.
func (s *GatewayServiceImpl) RefundPayment(ctx context.Context, merchant *domain.Merchant, transactionID uuid.UUID, reason string) (*ports.OperationResult, error) {
	original, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if original == nil || original.MerchantID != merchant.ID {
		return nil, apperror.ErrNotFound("transaction")
	}
	if original.Status != domain.TransactionStatusCompleted || original.Type != domain.TransactionTypePaymentExec {
		return nil, apperror.ErrInvalidTransition(string(original.Status), string(domain.TransactionStatusRefunded))
	}
	if original.GatewayTransactionID == nil || original.Amount == nil {
		return nil, apperror.ErrNotFound("gateway transaction")
	}

	result, err := s.gateway.Refund(ctx, *original.GatewayTransactionID, *original.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund call: %w", err))
	}
	if !result.Succeeded {
		return &ports.OperationResult{Success: false, Message: result.FailureReason}, nil
	}

	now := time.Now().UTC()
	ok, err := s.txRepo.UpdateStatus(ctx, original.ID, domain.TransactionStatusCompleted, domain.TransactionStatusRefunded,
		ports.TransactionStatusUpdate{At: now})
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if !ok {
		return nil, apperror.ErrInvalidTransition(string(domain.TransactionStatusRefunded), string(domain.TransactionStatusRefunded))
	}

	metadata, _ := json.Marshal(map[string]any{"originalTransactionId": original.ID, "reason": reason})
	refundTx := &domain.Transaction{
		ID:                   uuid.New(),
		MerchantID:           merchant.ID,
		UserID:               original.UserID,
		AgentID:              original.AgentID,
		MandateID:            original.MandateID,
		Type:                 domain.TransactionTypePaymentRefund,
		Status:               domain.TransactionStatusCompleted,
		Amount:               original.Amount,
		Currency:             original.Currency,
		Metadata:             metadata,
		RequestedAt:          now,
		CompletedAt:          &now,
		GatewayTransactionID: &result.GatewayTransactionID,
	}
	if err := s.txRepo.Create(ctx, refundTx); err != nil {
		return nil, apperror.InternalError(err)
	}

	s.enqueueWebhook(ctx, merchant, domain.EventPaymentRefunded, map[string]any{
		"transactionId":         refundTx.ID,
		"originalTransactionId": original.ID,
		"amount":                *original.Amount,
	})

	return &ports.OperationResult{Success: true, Transaction: refundTx}, nil
}

// --- constraint checks ---

func (s *GatewayServiceImpl) checkCartConstraints(ctx context.Context, mandate *domain.Mandate, req ports.CartOperationRequest) error {
	c, err := mandate.CartConstraints()
	if err != nil {
		return apperror.InternalError(err)
	}

	if c.MaxItemValue != nil && req.ItemValue != nil && *req.ItemValue > *c.MaxItemValue {
		return apperror.ErrLimitExceeded(fmt.Sprintf("item value %.2f exceeds max allowed %.2f", *req.ItemValue, *c.MaxItemValue))
	}

	if req.Category != "" {
		for _, blocked := range c.BlockedCategories {
			if blocked == req.Category {
				return apperror.ErrLimitExceeded(fmt.Sprintf("category %s is blocked", req.Category))
			}
		}
		if len(c.AllowedCategories) > 0 && !contains(c.AllowedCategories, req.Category) {
			return apperror.ErrLimitExceeded(fmt.Sprintf("category %s is not in allowed list", req.Category))
		}
	}

	if c.MaxItemsPerDay != nil {
		count, err := s.txRepo.CountByMandate(ctx, mandate.ID, cartTransactionTypes, startOfDay(time.Now().UTC()))
		if err != nil {
			return apperror.InternalError(err)
		}
		if count >= *c.MaxItemsPerDay {
			return apperror.ErrLimitExceeded(fmt.Sprintf("daily limit of %d items reached", *c.MaxItemsPerDay))
		}
	}
	return nil
}

func (s *GatewayServiceImpl) checkIntentConstraints(ctx context.Context, mandate *domain.Mandate, amount float64) (bool, time.Duration, error) {
	c, err := mandate.IntentConstraints()
	if err != nil {
		return false, 0, apperror.InternalError(err)
	}

	if c.MaxIntentValue != nil && amount > *c.MaxIntentValue {
		return false, 0, apperror.ErrLimitExceeded(fmt.Sprintf("intent value %.2f exceeds max allowed %.2f", amount, *c.MaxIntentValue))
	}

	if c.MaxIntentsPerDay != nil {
		count, err := s.txRepo.CountByMandate(ctx, mandate.ID,
			[]domain.TransactionType{domain.TransactionTypeIntentCreate}, startOfDay(time.Now().UTC()))
		if err != nil {
			return false, 0, apperror.InternalError(err)
		}
		if count >= *c.MaxIntentsPerDay {
			return false, 0, apperror.ErrLimitExceeded(fmt.Sprintf("daily limit of %d intents reached", *c.MaxIntentsPerDay))
		}
	}

	// Strictly under the threshold. An intent at exactly the threshold
	// stays pending for human approval.
	autoApproved := c.AutoApproveUnder != nil && amount < *c.AutoApproveUnder
	return autoApproved, c.IntentExpiry(), nil
}

// checkMerchantVolumeLimits enforces the merchant's tier-level daily and
// monthly completed-payment volume caps over calendar windows.
func (s *GatewayServiceImpl) checkMerchantVolumeLimits(ctx context.Context, merchant *domain.Merchant, amount float64) error {
	now := time.Now().UTC()
	paymentTypes := []domain.TransactionType{domain.TransactionTypePaymentExec}

	if limit := merchant.Settings.DailyTransactionLimit; limit > 0 {
		volume, err := s.txRepo.SumCompletedByMerchant(ctx, merchant.ID, paymentTypes, startOfDay(now), now)
		if err != nil {
			return apperror.InternalError(err)
		}
		if volume+amount > limit {
			return apperror.ErrLimitExceeded(fmt.Sprintf("amount %.2f would exceed merchant dailyTransactionLimit %.2f (volume %.2f today)", amount, limit, volume))
		}
	}
	if limit := merchant.Settings.MonthlyTransactionLimit; limit > 0 {
		volume, err := s.txRepo.SumCompletedByMerchant(ctx, merchant.ID, paymentTypes, startOfMonth(now), now)
		if err != nil {
			return apperror.InternalError(err)
		}
		if volume+amount > limit {
			return apperror.ErrLimitExceeded(fmt.Sprintf("amount %.2f would exceed merchant monthlyTransactionLimit %.2f (volume %.2f this month)", amount, limit, volume))
		}
	}
	return nil
}

func (s *GatewayServiceImpl) checkPaymentConstraints(ctx context.Context, mandate *domain.Mandate, amount float64, paymentMethod string) error {
	c, err := mandate.PaymentConstraints()
	if err != nil {
		return apperror.InternalError(err)
	}

	if c.MaxTransactionAmount != nil && amount > *c.MaxTransactionAmount {
		return apperror.ErrLimitExceeded(fmt.Sprintf("amount %.2f exceeds max allowed maxTransactionAmount %.2f", amount, *c.MaxTransactionAmount))
	}
	if len(c.AllowedPaymentMethods) > 0 && !contains(c.AllowedPaymentMethods, paymentMethod) {
		return apperror.ErrLimitExceeded(fmt.Sprintf("payment method %s is not allowed", paymentMethod))
	}

	now := time.Now().UTC()
	if c.DailySpendingLimit != nil {
		spent, err := s.txRepo.SumCompletedByMandate(ctx, mandate.ID,
			[]domain.TransactionType{domain.TransactionTypePaymentExec}, startOfDay(now), now)
		if err != nil {
			return apperror.InternalError(err)
		}
		if spent+amount > *c.DailySpendingLimit {
			return apperror.ErrLimitExceeded(fmt.Sprintf("amount %.2f would exceed dailySpendingLimit %.2f (spent %.2f today)", amount, *c.DailySpendingLimit, spent))
		}
	}
	if c.MonthlySpendingLimit != nil {
		spent, err := s.txRepo.SumCompletedByMandate(ctx, mandate.ID,
			[]domain.TransactionType{domain.TransactionTypePaymentExec}, startOfMonth(now), now)
		if err != nil {
			return apperror.InternalError(err)
		}
		if spent+amount > *c.MonthlySpendingLimit {
			return apperror.ErrLimitExceeded(fmt.Sprintf("amount %.2f would exceed monthlySpendingLimit %.2f (spent %.2f this month)", amount, *c.MonthlySpendingLimit, spent))
		}
	}
	return nil
}

func (s *GatewayServiceImpl) remainingLimits(ctx context.Context, mandate *domain.Mandate) (map[string]float64, error) {
	now := time.Now().UTC()
	limits := map[string]float64{}

	count, err := s.txRepo.CountByMandate(ctx, mandate.ID, nil, startOfDay(now))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	limits["transactionsToday"] = float64(count)

	if mandate.Type != domain.MandateTypePayment {
		return limits, nil
	}

	c, err := mandate.PaymentConstraints()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if c.DailySpendingLimit != nil {
		spent, err := s.txRepo.SumCompletedByMandate(ctx, mandate.ID,
			[]domain.TransactionType{domain.TransactionTypePaymentExec}, startOfDay(now), now)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		limits["dailySpending"] = *c.DailySpendingLimit - spent
	}
	if c.MonthlySpendingLimit != nil {
		spent, err := s.txRepo.SumCompletedByMandate(ctx, mandate.ID,
			[]domain.TransactionType{domain.TransactionTypePaymentExec}, startOfMonth(now), now)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		limits["monthlySpending"] = *c.MonthlySpendingLimit - spent
	}
	return limits, nil
}

// --- pipeline helpers ---

func (s *GatewayServiceImpl) createPending(ctx context.Context, merchant *domain.Merchant, userID uuid.UUID, agentID string, mandateID uuid.UUID, txType domain.TransactionType, amount *float64, metadata json.RawMessage) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:          uuid.New(),
		MerchantID:  merchant.ID,
		UserID:      userID,
		AgentID:     agentID,
		MandateID:   mandateID,
		Type:        txType,
		Status:      domain.TransactionStatusPending,
		Amount:      amount,
		Currency:    "USD",
		Metadata:    metadata,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	return tx, nil
}

// decline drives a pending transaction to declined and returns the
// human-readable reason.
func (s *GatewayServiceImpl) decline(ctx context.Context, tx *domain.Transaction, cause error) string {
	msg := cause.Error()
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		msg = appErr.Message
	}

	now := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusDeclined,
		ports.TransactionStatusUpdate{At: now, FailureReason: &msg}); err != nil {
		s.log.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("failed to record decline")
	}
	tx.Status = domain.TransactionStatusDeclined
	tx.FailedAt = &now
	tx.FailureReason = &msg

	s.audit(ctx, tx, auditKindFor(tx.Type), false, msg)
	return msg
}

func (s *GatewayServiceImpl) declineResult(ctx context.Context, merchant *domain.Merchant, tx *domain.Transaction, cause error) (*ports.OperationResult, error) {
	msg := s.decline(ctx, tx, cause)

	// Lazy expiry discovered mid-operation is worth telling the merchant about.
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) && appErr.Code == "MANDATE_EXPIRED" {
		s.enqueueWebhook(ctx, merchant, domain.EventMandateExpired, map[string]any{
			"mandateId": tx.MandateID,
		})
	}
	return &ports.OperationResult{Success: false, Transaction: tx, Message: msg}, nil
}

// failResult drives an authorized transaction to failed after a downstream
// error and notifies the merchant.
func (s *GatewayServiceImpl) failResult(ctx context.Context, merchant *domain.Merchant, tx *domain.Transaction, reason string) (*ports.OperationResult, error) {
	now := time.Now().UTC()
	if _, err := s.txRepo.UpdateStatus(ctx, tx.ID, domain.TransactionStatusAuthorized, domain.TransactionStatusFailed,
		ports.TransactionStatusUpdate{At: now, FailureReason: &reason}); err != nil {
		s.log.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("failed to record failure")
	}
	tx.Status = domain.TransactionStatusFailed
	tx.FailedAt = &now
	tx.FailureReason = &reason

	s.audit(ctx, tx, auditKindFor(tx.Type), false, reason)
	s.enqueueWebhook(ctx, merchant, domain.EventPaymentFailed, map[string]any{
		"transactionId": tx.ID,
		"reason":        reason,
	})

	return &ports.OperationResult{Success: false, Transaction: tx, Message: reason}, nil
}

// enqueueWebhook never propagates delivery problems to the caller.
func (s *GatewayServiceImpl) enqueueWebhook(ctx context.Context, merchant *domain.Merchant, event domain.WebhookEvent, data any) {
	if err := s.webhookSvc.Enqueue(ctx, merchant, event, data); err != nil {
		s.log.Warn().Err(err).Str("event", string(event)).Str("merchant_id", merchant.ID.String()).Msg("webhook enqueue failed")
	}
}

func (s *GatewayServiceImpl) audit(ctx context.Context, tx *domain.Transaction, kind domain.AgentActionKind, success bool, details string) {
	s.auditSvc.Record(ctx, &domain.AgentAction{
		ID:        uuid.New(),
		UserID:    tx.UserID,
		AgentID:   tx.AgentID,
		MandateID: &tx.MandateID,
		Action:    kind,
		Details:   details,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	})
}

func cartOperationType(op string) (domain.TransactionType, error) {
	switch op {
	case "add":
		return domain.TransactionTypeCartAdd, nil
	case "update":
		return domain.TransactionTypeCartUpdate, nil
	case "remove":
		return domain.TransactionTypeCartRemove, nil
	}
	return "", apperror.Validation(fmt.Sprintf("unknown cart operation: %s", op))
}

func intentOperationType(op string) (domain.TransactionType, domain.WebhookEvent, error) {
	switch op {
	case "create":
		return domain.TransactionTypeIntentCreate, domain.EventIntentCreated, nil
	case "approve":
		return domain.TransactionTypeIntentApprove, domain.EventIntentApproved, nil
	case "reject":
		return domain.TransactionTypeIntentReject, domain.EventIntentRejected, nil
	}
	return "", "", apperror.Validation(fmt.Sprintf("unknown intent operation: %s", op))
}

func auditKindFor(t domain.TransactionType) domain.AgentActionKind {
	switch t {
	case domain.TransactionTypePaymentExec, domain.TransactionTypePaymentRefund:
		return domain.ActionPaymentExecute
	case domain.TransactionTypeIntentCreate, domain.TransactionTypeIntentApprove, domain.TransactionTypeIntentReject:
		return domain.ActionIntentCreate
	}
	return domain.ActionCartOperation
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
