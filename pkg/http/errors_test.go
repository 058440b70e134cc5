package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_SetsStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteUnauthorized(w, "Authentication failed")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unauthorized", resp.Error)
	assert.Equal(t, "Authentication failed", resp.Message)
}

func TestWriteTooManyRequests_RetryAfterRoundsUp(t *testing.T) {
	w := httptest.NewRecorder()
	WriteTooManyRequests(w, "slow down", 1500*time.Millisecond)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestWriteTooManyRequests_NoHintOmitsHeader(t *testing.T) {
	w := httptest.NewRecorder()
	WriteTooManyRequests(w, "slow down", 0)

	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteErrorWithDetails_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBadRequest(w, "bad input")

	assert.NotContains(t, w.Body.String(), "details")
}
