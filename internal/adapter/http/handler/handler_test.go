package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ap2-gateway/internal/adapter/http/dto"
	"ap2-gateway/internal/adapter/http/middleware"
	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/internal/core/ports/mocks"
	"ap2-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(t *testing.T, method string, body any) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, "/", reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func envelopeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func testMerchant() *domain.Merchant {
	return &domain.Merchant{
		ID:     uuid.New(),
		Name:   "Acme",
		Status: domain.MerchantStatusActive,
		Tier:   domain.MerchantTierStarter,
	}
}

// --- Auth Handler Tests ---

func TestAuthRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
		Name:     "Alice",
	}).Return(&domain.User{
		ID:    userID,
		Email: "alice@example.com",
		Name:  "Alice",
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.RegisterUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
		Name:     "Alice",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, userID.String(), data["id"])
	assert.Equal(t, "alice@example.com", data["email"])
}

func TestAuthRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	w, c := jsonRequest(t, http.MethodPost, map[string]string{"email": "not-an-email"})

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRegister_EmailExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	w, c := jsonRequest(t, http.MethodPost, dto.RegisterUserRequest{
		Email:    "taken@example.com",
		Password: "password123",
		Name:     "Taken",
	})

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "alice@example.com", "password123").
		Return("jwt-token-123", expiry, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "jwt-token-123", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiresAt"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "bad@example.com", "wrong").
		Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w, c := jsonRequest(t, http.MethodPost, dto.LoginRequest{
		Email:    "bad@example.com",
		Password: "wrong",
	})

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Merchant Handler Tests ---

func TestMerchantRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	webhookSecret := "whsec_test"
	mockMerchant.EXPECT().Register(gomock.Any(), gomock.Any()).Return(&ports.MerchantCredentials{
		Merchant:      merchant,
		APIKey:        "ak_live_test",
		APISecret:     "sk_live_test",
		WebhookSecret: &webhookSecret,
	}, nil)

	webhookURL := "https://shop.example.com/hooks"
	w, c := jsonRequest(t, http.MethodPost, dto.RegisterMerchantRequest{
		Name:         "Acme",
		BusinessName: "Acme Corp",
		Email:        "ops@acme.example.com",
		Tier:         "business",
		WebhookURL:   &webhookURL,
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, merchant.ID.String(), data["merchantId"])
	assert.Equal(t, "ak_live_test", data["apiKey"])
	assert.Equal(t, "sk_live_test", data["apiSecret"])
	assert.Equal(t, "whsec_test", data["webhookSecret"])
}

func TestMerchantRegister_DefaultsToStarterTier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	mockMerchant.EXPECT().Register(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, req ports.RegisterMerchantRequest) (*ports.MerchantCredentials, error) {
			assert.Equal(t, domain.MerchantTierStarter, req.Tier)
			return &ports.MerchantCredentials{Merchant: merchant, APIKey: "ak", APISecret: "sk"}, nil
		})

	w, c := jsonRequest(t, http.MethodPost, dto.RegisterMerchantRequest{
		Name:         "Acme",
		BusinessName: "Acme Corp",
		Email:        "ops@acme.example.com",
	})

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestMerchantGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	mockMerchant.EXPECT().Get(gomock.Any(), merchant.ID).Return(merchant, nil)

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, merchant.ID.String(), data["id"])
}

func TestMerchantGet_OtherMerchantReadsAsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewMerchantHandler(mocks.NewMockMerchantService(ctrl), nil)

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Params = gin.Params{{Key: "merchantId", Value: uuid.New().String()}}
	c.Set(middleware.CtxMerchant, testMerchant())

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMerchantUpdateStatus_RejectsUnknownValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewMerchantHandler(mocks.NewMockMerchantService(ctrl), nil)

	merchant := testMerchant()
	w, c := jsonRequest(t, http.MethodPut, map[string]string{"status": "frozen"})
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMerchantUpdateStatus_InvalidTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	mockMerchant.EXPECT().UpdateStatus(gomock.Any(), merchant.ID, domain.MerchantStatusActive).
		Return(apperror.ErrInvalidTransition("deactivated", "active"))

	w, c := jsonRequest(t, http.MethodPut, map[string]string{"status": "active"})
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.UpdateStatus(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfigureWebhook_ReturnsSecretOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	mockMerchant.EXPECT().ConfigureWebhook(gomock.Any(), merchant.ID, "https://shop.example.com/hooks").
		Return("whsec_fresh", nil)

	w, c := jsonRequest(t, http.MethodPut, dto.ConfigureWebhookRequest{URL: "https://shop.example.com/hooks"})
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.ConfigureWebhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "whsec_fresh", data["webhookSecret"])
	assert.Equal(t, "https://shop.example.com/hooks", data["webhookUrl"])
}

func TestRotateKeys_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMerchant := mocks.NewMockMerchantService(ctrl)
	h := NewMerchantHandler(mockMerchant, nil)

	merchant := testMerchant()
	mockMerchant.EXPECT().RotateKeys(gomock.Any(), merchant.ID).Return(&ports.MerchantCredentials{
		Merchant:  merchant,
		APIKey:    "ak_rotated",
		APISecret: "sk_rotated",
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, nil)
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.RotateKeys(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "ak_rotated", data["apiKey"])
	assert.Equal(t, "sk_rotated", data["apiSecret"])
}

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewMerchantHandler(mocks.NewMockMerchantService(ctrl), mockReporting)

	merchant := testMerchant()
	amount := 49.99
	mockReporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, merchant.ID, params.MerchantID)
			require.NotNil(t, params.Status)
			assert.Equal(t, domain.TransactionStatusCompleted, *params.Status)
			return []domain.Transaction{{
				ID:         uuid.New(),
				MerchantID: merchant.ID,
				Type:       domain.TransactionTypePaymentExec,
				Status:     domain.TransactionStatusCompleted,
				Amount:     &amount,
			}}, 1, nil
		})

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Request = httptest.NewRequest(http.MethodGet, "/?status=completed&page=1&pageSize=20", nil)
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["totalPages"])
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewMerchantHandler(mocks.NewMockMerchantService(ctrl), mockReporting)

	merchant := testMerchant()
	mockReporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
		Return(nil, int64(0), errors.New("db down"))

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "merchantId", Value: merchant.ID.String()}}
	c.Set(middleware.CtxMerchant, merchant)

	h.ListTransactions(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- Gateway Handler Tests ---

func TestAuthorize_Authorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	txID := uuid.New()
	mockGateway.EXPECT().AuthorizeRequest(gomock.Any(), merchant, gomock.Any()).
		Return(&ports.AuthorizationResult{
			Authorized:    true,
			TransactionID: txID,
		}, nil)

	amount := 25.0
	w, c := jsonRequest(t, http.MethodPost, dto.AuthorizeRequest{
		UserID:          uuid.New(),
		AgentID:         "agent-1",
		MandateID:       uuid.New(),
		TransactionType: "payment_execute",
		Amount:          &amount,
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Authorize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, true, data["authorized"])
	assert.Equal(t, txID.String(), data["transactionId"])
}

func TestAuthorize_DeclinedIsStillOK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	mockGateway.EXPECT().AuthorizeRequest(gomock.Any(), merchant, gomock.Any()).
		Return(&ports.AuthorizationResult{
			Authorized:    false,
			TransactionID: uuid.New(),
			Message:       "amount exceeds maxTransactionAmount",
		}, nil)

	amount := 999999.0
	w, c := jsonRequest(t, http.MethodPost, dto.AuthorizeRequest{
		UserID:          uuid.New(),
		AgentID:         "agent-1",
		MandateID:       uuid.New(),
		TransactionType: "payment_execute",
		Amount:          &amount,
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Authorize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, false, data["authorized"])
	assert.Contains(t, data["message"], "maxTransactionAmount")
}

func TestAuthorize_MissingMerchantContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGatewayHandler(mocks.NewMockGatewayService(ctrl))

	w, c := jsonRequest(t, http.MethodPost, nil)

	h.Authorize(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthorize_MandateNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	mockGateway.EXPECT().AuthorizeRequest(gomock.Any(), merchant, gomock.Any()).
		Return(nil, apperror.ErrMandateNotFound())

	w, c := jsonRequest(t, http.MethodPost, dto.AuthorizeRequest{
		UserID:          uuid.New(),
		AgentID:         "agent-1",
		MandateID:       uuid.New(),
		TransactionType: "cart_add",
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Authorize(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyMandate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	mandateID := uuid.New()
	mockGateway.EXPECT().VerifyMandate(gomock.Any(), ports.VerifyMandateRequest{
		MandateID: mandateID,
		AgentID:   "agent-1",
		Type:      domain.MandateTypePayment,
	}).Return(&ports.MandateVerification{Valid: true}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.VerifyMandateRequest{
		MandateID: mandateID,
		AgentID:   "agent-1",
		Type:      "payment",
	})
	c.Set(middleware.CtxMerchant, testMerchant())

	h.VerifyMandate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, true, data["valid"])
}

func TestPayment_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	amount := 49.99
	mockGateway.EXPECT().ProcessPayment(gomock.Any(), merchant, gomock.Any()).
		Return(&ports.OperationResult{
			Success: true,
			Transaction: &domain.Transaction{
				ID:     uuid.New(),
				Type:   domain.TransactionTypePaymentExec,
				Status: domain.TransactionStatusCompleted,
				Amount: &amount,
			},
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.PaymentRequest{
		UserID:        uuid.New(),
		MandateID:     uuid.New(),
		AgentID:       "agent-1",
		Amount:        49.99,
		Currency:      "USD",
		PaymentMethod: "card",
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Payment(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, true, data["success"])
}

func TestPayment_LimitExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	mockGateway.EXPECT().ProcessPayment(gomock.Any(), merchant, gomock.Any()).
		Return(nil, apperror.ErrLimitExceeded("daily limit reached"))

	w, c := jsonRequest(t, http.MethodPost, dto.PaymentRequest{
		UserID:        uuid.New(),
		MandateID:     uuid.New(),
		AgentID:       "agent-1",
		Amount:        100000,
		Currency:      "USD",
		PaymentMethod: "card",
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Payment(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPayment_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGatewayHandler(mocks.NewMockGatewayService(ctrl))

	// Currency must be exactly 3 characters.
	w, c := jsonRequest(t, http.MethodPost, map[string]interface{}{
		"userId":        uuid.New().String(),
		"mandateId":     uuid.New().String(),
		"agentId":       "agent-1",
		"amount":        10,
		"currency":      "DOLLARS",
		"paymentMethod": "card",
	})
	c.Set(middleware.CtxMerchant, testMerchant())

	h.Payment(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefund_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGateway := mocks.NewMockGatewayService(ctrl)
	h := NewGatewayHandler(mockGateway)

	merchant := testMerchant()
	txID := uuid.New()
	mockGateway.EXPECT().RefundPayment(gomock.Any(), merchant, txID, "Customer request").
		Return(&ports.OperationResult{Success: true}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.RefundRequest{
		TransactionID: txID,
		Reason:        "Customer request",
	})
	c.Set(middleware.CtxMerchant, merchant)

	h.Refund(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Mandate Handler Tests ---

func TestMandateCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMandate := mocks.NewMockMandateService(ctrl)
	h := NewMandateHandler(mockMandate, mocks.NewMockAuditService(ctrl))

	userID := uuid.New()
	mandateID := uuid.New()
	mockMandate.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ interface{}, req ports.CreateMandateRequest) (*domain.Mandate, error) {
			assert.Equal(t, userID, req.UserID)
			assert.Equal(t, domain.MandateTypeCart, req.Type)
			return &domain.Mandate{
				ID:      mandateID,
				UserID:  userID,
				AgentID: req.AgentID,
				Type:    req.Type,
				Status:  domain.MandateStatusPending,
			}, nil
		})

	w, c := jsonRequest(t, http.MethodPost, dto.CreateMandateRequest{
		AgentID:     "shopper-bot",
		AgentName:   "Shopper Bot",
		Type:        "cart",
		Constraints: json.RawMessage(`{"maxItemValue": 50}`),
	})
	c.Set(middleware.CtxUserID, userID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, mandateID.String(), data["id"])
	assert.Equal(t, "pending", data["status"])
}

func TestMandateCreate_MissingUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewMandateHandler(mocks.NewMockMandateService(ctrl), mocks.NewMockAuditService(ctrl))

	w, c := jsonRequest(t, http.MethodPost, nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMandateApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMandate := mocks.NewMockMandateService(ctrl)
	h := NewMandateHandler(mockMandate, mocks.NewMockAuditService(ctrl))

	userID := uuid.New()
	mandateID := uuid.New()
	mockMandate.EXPECT().Approve(gomock.Any(), userID, mandateID).Return(&domain.Mandate{
		ID:     mandateID,
		UserID: userID,
		Status: domain.MandateStatusActive,
	}, nil)

	w, c := jsonRequest(t, http.MethodPost, nil)
	c.Params = gin.Params{{Key: "mandateId", Value: mandateID.String()}}
	c.Set(middleware.CtxUserID, userID)

	h.Approve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "active", data["status"])
}

func TestMandateApprove_InvalidTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMandate := mocks.NewMockMandateService(ctrl)
	h := NewMandateHandler(mockMandate, mocks.NewMockAuditService(ctrl))

	userID := uuid.New()
	mandateID := uuid.New()
	mockMandate.EXPECT().Approve(gomock.Any(), userID, mandateID).
		Return(nil, apperror.ErrInvalidTransition("revoked", "active"))

	w, c := jsonRequest(t, http.MethodPost, nil)
	c.Params = gin.Params{{Key: "mandateId", Value: mandateID.String()}}
	c.Set(middleware.CtxUserID, userID)

	h.Approve(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMandateRevoke_RequiresReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewMandateHandler(mocks.NewMockMandateService(ctrl), mocks.NewMockAuditService(ctrl))

	w, c := jsonRequest(t, http.MethodPost, map[string]string{})
	c.Params = gin.Params{{Key: "mandateId", Value: uuid.New().String()}}
	c.Set(middleware.CtxUserID, uuid.New())

	h.Revoke(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMandateRevoke_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMandate := mocks.NewMockMandateService(ctrl)
	h := NewMandateHandler(mockMandate, mocks.NewMockAuditService(ctrl))

	userID := uuid.New()
	mandateID := uuid.New()
	mockMandate.EXPECT().Revoke(gomock.Any(), userID, mandateID, "no longer needed").
		Return(&domain.Mandate{
			ID:     mandateID,
			UserID: userID,
			Status: domain.MandateStatusRevoked,
		}, nil)

	w, c := jsonRequest(t, http.MethodPost, dto.RevokeMandateRequest{Reason: "no longer needed"})
	c.Params = gin.Params{{Key: "mandateId", Value: mandateID.String()}}
	c.Set(middleware.CtxUserID, userID)

	h.Revoke(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := envelopeData(t, w)
	assert.Equal(t, "revoked", data["status"])
}

func TestMandateList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMandate := mocks.NewMockMandateService(ctrl)
	h := NewMandateHandler(mockMandate, mocks.NewMockAuditService(ctrl))

	userID := uuid.New()
	mockMandate.EXPECT().List(gomock.Any(), userID).Return([]domain.Mandate{
		{ID: uuid.New(), UserID: userID, Status: domain.MandateStatusActive},
		{ID: uuid.New(), UserID: userID, Status: domain.MandateStatusRevoked},
	}, nil)

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Set(middleware.CtxUserID, userID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	assert.Len(t, items, 2)
}

func TestListActions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	h := NewMandateHandler(mocks.NewMockMandateService(ctrl), mockAudit)

	userID := uuid.New()
	mockAudit.EXPECT().ListByUser(gomock.Any(), userID, 20).Return([]domain.AgentAction{
		{ID: uuid.New(), UserID: userID, AgentID: "shopper-bot"},
	}, nil)

	w, c := jsonRequest(t, http.MethodGet, nil)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.CtxUserID, userID)

	h.ListActions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	assert.Len(t, items, 1)
}

// --- Health Check Tests ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(ctx context.Context) error { return s.err }

func (s stubChecker) Name() string { return s.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_DegradedDependency(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(
		stubChecker{name: "postgresql"},
		stubChecker{name: "redis", err: errors.New("connection refused")},
	)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	redis := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redis["status"])
}

// --- Swagger Tests ---

func TestSwaggerUI(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger", nil)

	SwaggerUI(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "/swagger/spec")
}

func TestSwaggerSpec_Loaded(t *testing.T) {
	SetSwaggerSpec([]byte("openapi: '3.0.3'"))
	defer SetSwaggerSpec(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}

func TestSwaggerSpec_NotLoaded(t *testing.T) {
	SetSwaggerSpec(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)

	SwaggerSpec(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
