package ir

// Version constants recorded in every unit and in the fingerprint ledger.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// CompilerVersion is the tierc lowering version.
	CompilerVersion = "0.1.0"
)
