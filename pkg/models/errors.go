package models

import "errors"

// Error taxonomy shared by all stages. Only ErrConfiguration is fatal; the others
// are scoped to one company or one (row, slot) and get logged while the run continues.
var (
	// ErrConfiguration: a required input column is missing or an input is unreadable.
	ErrConfiguration = errors.New("configuration error")
	// ErrMapping: no CIK could be resolved for a ticker.
	ErrMapping = errors.New("mapping error")
	// ErrNetwork: transport failure, timeout or non-2xx response.
	ErrNetwork = errors.New("network error")
	// ErrBlocked: the remote answered with its anti-automation page.
	ErrBlocked = errors.New("blocked by remote")
	// ErrRender: the headless renderer failed.
	ErrRender = errors.New("render error")
	// ErrIntegrity: a downloaded or rendered artifact failed a sanity check.
	ErrIntegrity = errors.New("integrity error")
)

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
