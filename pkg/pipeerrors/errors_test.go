package pipeerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_WalksChain(t *testing.T) {
	inner := New(CodeBudgetRejected, "daily ceiling reached")
	outer := Wrap(inner, CodeProviderError, "enrichment call failed")

	assert.True(t, HasCode(outer, CodeProviderError))
	assert.True(t, HasCode(outer, CodeBudgetRejected))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestHasCode_PlainError(t *testing.T) {
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestWrap_NilIsNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(fmt.Errorf("dial: %w", cause), CodeProviderError, "provider unreachable")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeProviderError, CodeOf(err))
}

func TestCodeOf_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("untyped")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeValidationFailed, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeIDCollision, http.StatusConflict},
		{CodeReferentialViolation, http.StatusConflict},
		{CodeBudgetRejected, http.StatusPaymentRequired},
		{CodeGovernorPaused, http.StatusPaymentRequired},
		{CodeRemediationExhausted, http.StatusUnprocessableEntity},
		{CodeProviderError, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, ToHTTPStatus(tt.code))
		})
	}
}
