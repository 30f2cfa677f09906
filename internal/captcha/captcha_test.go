package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-abc", r.PostForm.Get("response"))
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "s3cret")
	ok, err := v.Verify(context.Background(), "tok-abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "error-codes": ["invalid-input-response"]}`)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "s3cret")
	ok, err := v.Verify(context.Background(), "tok-abc")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "invalid-input-response")
}

func TestVerify_NotSuccessfulWithoutErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false}`)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "s3cret")
	ok, err := v.Verify(context.Background(), "tok-abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "s3cret")
	ok, err := v.Verify(context.Background(), "tok-abc")
	require.Error(t, err)
	assert.False(t, ok)
}
