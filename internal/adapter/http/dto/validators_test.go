package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterMerchantRequest{
		Name:         "  Acme  ",
		BusinessName: " Acme Corp ",
		Email:        "  ops@acme.example  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Acme", req.Name)
	assert.Equal(t, "Acme Corp", req.BusinessName)
	assert.Equal(t, "ops@acme.example", req.Email)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RevokeMandateRequest{
		Reason: "user <script>alert('x')</script> request",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	url := "  https://acme.example/webhook  "
	req := RegisterMerchantRequest{
		Name:         "Acme",
		BusinessName: "Acme Corp",
		Email:        "ops@acme.example",
		WebhookURL:   &url,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "https://acme.example/webhook", *req.WebhookURL)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RegisterMerchantRequest{
		Name:         "Acme",
		BusinessName: "Acme Corp",
		Email:        "ops@acme.example",
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.WebhookURL)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"agent_shopper_01",
		"AGENT-002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"agent 01",    // space
		"agent<01>",   // angle brackets
		"agent;DROP",  // semicolon
		"",            // empty
		"hello world", // space
		"agent\n01",   // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestNewListResponse_ComputesTotalPages(t *testing.T) {
	resp := NewListResponse([]string{"a"}, 41, 2, 20)

	assert.Equal(t, int64(41), resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 3, resp.TotalPages)
}
