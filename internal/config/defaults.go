package config

// Test execution defaults
const (
	DefaultTestCommand        = "go test ./..."
	DefaultTestTimeoutSeconds = 300
)

// Ralph-Loop defaults
const (
	DefaultMaxAttempts    = 3
	DefaultBackupRetention = 10
)

// Codegen collaborator defaults
const (
	DefaultCodegenCommand = "claude"
)

// Safety defaults
var DefaultAllowedCommands = []string{"go", "npm", "git"}
