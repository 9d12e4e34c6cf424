// Package errs is the error taxonomy shared across dexarb: every fatal and
// recoverable error condition described in spec.md §7 is a sentinel here,
// wrapped with context via fmt.Errorf("%w: ...") at the call site, in the
// style of protocols/uniswapv2/calculator's Err* variables.
package errs

import "errors"

var (
	// ConfigError-class: missing endpoint, duplicate pool key, unknown token
	// in a pool. Fatal; aborts startup.
	ErrConfig = errors.New("config error")

	// Programming errors. Fatal.
	ErrNoSuchSymbol = errors.New("no such trading symbol")
	ErrNoSuchPool   = errors.New("no such pool")

	// TransportClosed: websocket close events. Recoverable via the reconnect
	// supervisor with fixed backoff.
	ErrTransportClosed = errors.New("transport closed")

	// DecodeError: malformed event payload. Logged and skipped; the task continues.
	ErrDecode = errors.New("decode error")

	// OracleUnavailable: gas-oracle fetch failed. Proceed with (0,0) estimates.
	ErrOracleUnavailable = errors.New("gas oracle unavailable")

	// SimulationError: QuoteOracle call reverted. Discard pending.
	ErrSimulation = errors.New("simulation error")

	// SubmitError: relay rejected bundle. Cancel replacement, stop retry loop.
	ErrSubmit = errors.New("submit error")
)
