// Package errors provides structured, actionable startup errors for simwire.
//
// Runtime protocol failures are plain sentinel errors owned by the packages
// that detect them; they are dropped and logged, never shown to operators.
// This package covers the failures an operator has to fix: a bad
// configuration file, a corrupt message table, a port that cannot be bound.
//
// # Error Codes
//
// Each error has a unique code (e.g., "E101") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("simwire.yaml", 12, 0).
//	    WithSuggestion("circuit.max_resends must be at least 1")
//
//	errors.Write(os.Stderr, err, errors.StyleTerminal)
//	// Output:
//	// ERROR E101: Invalid configuration value
//	//
//	//   simwire.yaml:12
//	//
//	//     10 │ circuit:
//	//     11 │   resend_timeout: 2s
//	//   → 12 │   max_resends: 0
//	//     13 │   idle_timeout: 60s
//	//
//	//   Hint: circuit.max_resends must be at least 1
//
// StyleLine prints the same error on one line and StyleJSON as a single
// object keyed like slog's JSON handler.
package errors
