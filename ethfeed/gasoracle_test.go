package ethfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexarb/go-arbengine/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGasOracle_Fetch_ParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"max_priority_fee_per_gas_wei":"2000000000","max_fee_per_gas_wei":"50000000000"}`))
	}))
	defer server.Close()

	oracle := NewGasOracle(server.URL, "test-key")
	priority, maxFee, err := oracle.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000_000, priority.Int64())
	assert.EqualValues(t, 50_000_000_000, maxFee.Int64())
}

func TestGasOracle_Fetch_NonOKStatusReturnsOracleUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	oracle := NewGasOracle(server.URL, "")
	oracle.client.RetryMax = 0

	_, _, err := oracle.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOracleUnavailable)
}

func TestGasOracle_Fetch_MalformedBodyReturnsOracleUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	oracle := NewGasOracle(server.URL, "")
	_, _, err := oracle.Fetch(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOracleUnavailable)
}
