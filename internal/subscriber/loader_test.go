package subscriber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPLoader_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/products", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"prodId":"0190a1b2-0000-7000-8000-000000000001","name":"Bread","price":"2.5","overallStock":80,"version":3,"totalSold":0}],"totalCount":1}`))
	})
	mux.HandleFunc("/api/v1/lots", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"lotId":"0190a1b2-0000-7000-8000-000000000002","prodId":"0190a1b2-0000-7000-8000-000000000001","prodName":"Bread","stockReceived":100,"remainingStock":80,"discarded":20,"totalLosses":"50","version":2}],"totalCount":1}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	products, lots, err := NewHTTPLoader(srv.URL+"/").Load(context.Background())
	require.NoError(t, err)

	require.Len(t, products, 1)
	assert.Equal(t, "Bread", products[0].Name)
	assert.Equal(t, int64(80), products[0].OverallStock)
	assert.Equal(t, "2.5", products[0].Price.String())

	require.Len(t, lots, 1)
	assert.Equal(t, "Bread", lots[0].ProductName)
	assert.Equal(t, int64(20), lots[0].Discarded)
	assert.Equal(t, products[0].ID, lots[0].ProductID)
}

func TestHTTPLoader_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := NewHTTPLoader(srv.URL).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
