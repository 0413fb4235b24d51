package exitcodes

// Exit codes for marker-sweep
// These codes form the contract with CI jobs and wrapper scripts.
// A run where some paths failed under the continue policy still exits Success.
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration or usage invalid
	SafetyViolation = 3 // Safety validator blocked a path and aborted a fail-fast run
	RuntimeError    = 4 // Runtime error during execution
)
