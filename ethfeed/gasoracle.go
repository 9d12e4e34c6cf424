package ethfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/hashicorp/go-retryablehttp"
)

// GasOracle fetches max_priority_fee_per_gas/max_fee_per_gas from an external
// gas-price API (spec.md §6's "optional credentials for gas oracle"). Absence
// of a configured oracle is represented by a nil *GasOracle, not by this
// type — callers skip the fetch entirely rather than call into a no-op.
//
// Unlike the system this was adapted from, the chain to query is an explicit
// parameter on every call: a single shared oracle instance serves every
// configured chain, and nothing here assumes there is only one.
type GasOracle struct {
	Endpoint string
	APIKey   string
	client   *retryablehttp.Client
}

// NewGasOracle builds a GasOracle backed by a retrying HTTP client (RetryMax
// 2: up to 2 retries after the first attempt).
func NewGasOracle(endpoint, apiKey string) *GasOracle {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &GasOracle{Endpoint: endpoint, APIKey: apiKey, client: client}
}

type gasEstimateResponse struct {
	MaxPriorityFeePerGasWei string `json:"max_priority_fee_per_gas_wei"`
	MaxFeePerGasWei         string `json:"max_fee_per_gas_wei"`
}

// Fetch returns (max_priority_fee_per_gas, max_fee_per_gas) in wei for chain.
// On any failure it returns (0, 0) and errs.ErrOracleUnavailable, which
// callers treat as non-fatal (spec.md §7): proceed with zero estimates.
func (g *GasOracle) Fetch(ctx context.Context, chain engine.ChainID) (maxPriorityFeePerGas, maxFeePerGas *big.Int, err error) {
	zero := big.NewInt(0)

	url := fmt.Sprintf("%s?chain_id=%d", g.Endpoint, chain)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, zero, fmt.Errorf("%w: building request: %v", errs.ErrOracleUnavailable, err)
	}
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return zero, zero, fmt.Errorf("%w: %v", errs.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, zero, fmt.Errorf("%w: status %d", errs.ErrOracleUnavailable, resp.StatusCode)
	}

	var parsed gasEstimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return zero, zero, fmt.Errorf("%w: decoding response: %v", errs.ErrOracleUnavailable, err)
	}

	priority, ok := new(big.Int).SetString(parsed.MaxPriorityFeePerGasWei, 10)
	if !ok {
		return zero, zero, fmt.Errorf("%w: malformed max_priority_fee_per_gas_wei %q", errs.ErrOracleUnavailable, parsed.MaxPriorityFeePerGasWei)
	}
	maxFee, ok := new(big.Int).SetString(parsed.MaxFeePerGasWei, 10)
	if !ok {
		return zero, zero, fmt.Errorf("%w: malformed max_fee_per_gas_wei %q", errs.ErrOracleUnavailable, parsed.MaxFeePerGasWei)
	}

	return priority, maxFee, nil
}
