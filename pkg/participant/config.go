package participant

import "fmt"

// Config mirrors laura-db's pkg/server.Config shape: a plain exported
// struct built by DefaultConfig and overridden by flags in
// cmd/participant.
type Config struct {
	NodeID string

	Host string
	Port int

	AdminPort int

	// LogDir holds the single append-only lock-transition log (spec
	// section 6).
	LogDir string

	// SourceDir is the working directory source files live in. Empty
	// means the process's own working directory.
	SourceDir string
}

// DefaultConfig returns a Config with a single log file under ./log and no
// node id set; cmd/participant fills in NodeID, Host, and Port from flags.
func DefaultConfig() *Config {
	return &Config{
		Host:      "0.0.0.0",
		Port:      9100,
		AdminPort: 9101,
		LogDir:    "log",
	}
}

func (c *Config) listenAddr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func (c *Config) adminAddr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.AdminPort)
}
