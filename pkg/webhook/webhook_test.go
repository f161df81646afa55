package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		SignalID:    "sig-1",
		SignalName:  "test signal",
		TriggeredAt: time.Now(),
		Scope:       PayloadScope{Chains: []int64{1}},
		ConditionsMet: []ConditionMet{
			{Type: "threshold", Triggered: true, Description: "totalBorrowAssets > 1000000"},
		},
		Context: PayloadContext{AppUserID: "user-1"},
	}
}

func TestDispatchSuccessOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), "")
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestDispatch4xxIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()), WithMaxRetries(3))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), "")
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDispatchRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()), WithMaxRetries(3))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), "")
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestDispatchExhaustsRetriesOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()), WithMaxRetries(2))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), "")
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts) // initial + 2 retries
}

func TestDispatchSignsBodyWhenSecretConfigured(t *testing.T) {
	secret := "shh"
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, gotSig)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), secret)
	require.True(t, result.Success)
	assert.NotEmpty(t, gotSig)
}

func TestDispatchNoSignatureHeaderWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(WithHTTPClient(srv.Client()))
	result := d.Dispatch(context.Background(), srv.URL, samplePayload(), "")
	assert.True(t, result.Success)
}
