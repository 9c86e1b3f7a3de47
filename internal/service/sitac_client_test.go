package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/model"
)

func testProtocolo() *model.Protocolo {
	return &model.Protocolo{
		Number:          "2024/0001",
		TaxID:           "12345678000195",
		PersonType:      model.PersonTypeOrganization,
		IssuedDate:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		StorageLocation: "Shelf A",
	}
}

func TestSITACRegisterSendsProtocolo(t *testing.T) {
	var got registerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/protocolos", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"protocolo": " SITAC-2024-77 "}`))
	}))
	defer srv.Close()

	c := NewSITACClient(srv.URL+"/", "secret")
	ref, err := c.Register(context.Background(), testProtocolo())
	require.NoError(t, err)

	assert.Equal(t, "SITAC-2024-77", ref)
	assert.Equal(t, "2024/0001", got.Number)
	assert.Equal(t, "12345678000195", got.TaxID)
	assert.Equal(t, "J", got.PersonType)
	assert.Equal(t, "2024-03-15", got.IssuedDate)
}

func TestSITACRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"protocolo": "SITAC-1"}`))
	}))
	defer srv.Close()

	c := NewSITACClient(srv.URL, "")
	c.backoff = time.Millisecond

	ref, err := c.Register(context.Background(), testProtocolo())
	require.NoError(t, err)
	assert.Equal(t, "SITAC-1", ref)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSITACDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewSITACClient(srv.URL, "")
	c.backoff = time.Millisecond

	_, err := c.Register(context.Background(), testProtocolo())
	require.Error(t, err)
	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSITACRejectsEmptyProtocolNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewSITACClient(srv.URL, "").Register(context.Background(), testProtocolo())
	assert.Error(t, err)
}

func TestSITACRequiresBaseURL(t *testing.T) {
	_, err := NewSITACClient("", "").Register(context.Background(), testProtocolo())
	assert.Error(t, err)
}
