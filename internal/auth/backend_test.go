package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendValidateSuccess(t *testing.T) {
	var got validateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":true,"user":{"tier":"MAX","email":"a@b.com","name":"A"}}`))
	}))
	defer srv.Close()

	v := NewBackendValidator(srv.URL, 5*time.Second)
	user, err := v.Validate(context.Background(), "tok_abc", "hw_123")
	require.NoError(t, err)

	assert.Equal(t, "tok_abc", got.Token)
	assert.Equal(t, "hw_123", got.HardwareID)
	assert.Equal(t, "MAX", user.Tier)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestBackendValidateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":false}`))
	}))
	defer srv.Close()

	v := NewBackendValidator(srv.URL, 5*time.Second)
	_, err := v.Validate(context.Background(), "tok", "hw")
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestBackendValidateUnavailable(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		v := NewBackendValidator("http://127.0.0.1:1/validate", time.Second)
		_, err := v.Validate(context.Background(), "tok", "hw")
		assert.ErrorIs(t, err, ErrBackendUnavailable, "network failure must be a degradation, not a rejection")
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		v := NewBackendValidator(srv.URL, time.Second)
		_, err := v.Validate(context.Background(), "tok", "hw")
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		v := NewBackendValidator(srv.URL, time.Second)
		_, err := v.Validate(context.Background(), "tok", "hw")
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})
}
