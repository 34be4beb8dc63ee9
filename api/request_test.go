package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string  `json:"name" validate:"required"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

func TestReadAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"diesel","amount":12.5}`, ""},
		{"empty body", ``, "request body is empty"},
		{"malformed", `{"name":`, "malformed JSON"},
		{"wrong type", `{"name":"diesel","amount":"lots"}`, "invalid JSON type for amount"},
		{"unknown field", `{"name":"diesel","extra":1}`, "unknown field"},
		{"two values", `{"name":"a"}{"name":"b"}`, "single JSON value"},
		{"missing required", `{"amount":1}`, "sampleRequest.Name (required)"},
		{"negative", `{"name":"x","amount":-1}`, "sampleRequest.Amount (gte)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sampleRequest
			err := ReadAndValidate(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, sampleRequest{Name: "diesel", Amount: 12.5}, dst)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type trimmedRequest struct {
	Code string `json:"code" validate:"required,len=4"`
}

func (r *trimmedRequest) Normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

func TestReadAndValidateNormalizesFirst(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"  ab12 "}`))
	var dst trimmedRequest
	require.NoError(t, ReadAndValidate(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "AB12", dst.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"    "}`))
	err := ReadAndValidate(httptest.NewRecorder(), req, &trimmedRequest{})
	assert.ErrorContains(t, err, "trimmedRequest.Code (required)")
}

func TestReadAndValidateTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst sampleRequest
	err := ReadAndValidate(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
	assert.Equal(t, "request body too large", err.Error())
}

func TestValidateReturnsValidationError(t *testing.T) {
	err := Validate(&sampleRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"sampleRequest.Name (required)"}, verr.Fields)
}
