package vault

import "time"

// AccountsOption configures Accounts.
type AccountsOption func(*Accounts)

// WithAccountsClock overrides the clock used for CreatedAt timestamps.
func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *Accounts) {
		a.now = now
	}
}

// EntriesOption configures Entries.
type EntriesOption func(*Entries)

// WithMaxConcurrentDerivations bounds how many key derivations may run at
// once. Callers beyond the bound wait, honouring their context.
func WithMaxConcurrentDerivations(n int64) EntriesOption {
	return func(e *Entries) {
		if n > 0 {
			e.maxKDF = n
		}
	}
}

// WithEntriesClock overrides the clock used for CreatedAt timestamps.
func WithEntriesClock(now func() time.Time) EntriesOption {
	return func(e *Entries) {
		e.now = now
	}
}
