package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mcpMode bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCPMode switches the process to MCP stdio transport instead of the
// HTTP API. Logs go to stderr so stdout stays clean for the protocol.
func WithMCPMode(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
