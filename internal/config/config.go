package config

// Config holds server core configuration
type Config struct {
	Server     Server     `yaml:"server"`
	SSE        SSE        `yaml:"sse"`
	Replay     Replay     `yaml:"replay"`
	Management Management `yaml:"management"`
	Logging    Logging    `yaml:"logging"`
}

// Server configuration for the connection engine
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Backend selects the connection backend: "eventloop" or "blocking".
	Backend string `yaml:"backend"`

	// Loops is the reactor count for the eventloop backend.
	Loops int `yaml:"loops"`

	// MaxConnections caps concurrent connections for the blocking backend.
	MaxConnections int `yaml:"maxConnections"`

	// ReadBufferSize is the per-connection inbound buffer in bytes. A
	// request head larger than this is rejected with a 400, not grown.
	ReadBufferSize int `yaml:"readBufferSize"`

	// WriteQueueLimit caps a connection's pending outbound bytes.
	WriteQueueLimit int `yaml:"writeQueueLimit"`

	KeepAlive bool `yaml:"keepAlive"`
}

// SSE configuration
type SSE struct {
	// KeepaliveInterval is the suggested heartbeat period in seconds for
	// applications holding idle streams. 0 disables the suggestion.
	KeepaliveInterval int `yaml:"keepaliveInterval"`
}

// Replay configuration for the reconnection event buffer
type Replay struct {
	// Backend: "none", "memory", or "redis".
	Backend  string `yaml:"backend"`
	Capacity int    `yaml:"capacity"`
	Redis    *Redis `yaml:"redis,omitempty"`
}

// Redis connection configuration
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// Management configuration for the ops endpoint
type Management struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			Backend:         "eventloop",
			Loops:           1,
			MaxConnections:  1024,
			ReadBufferSize:  8 * 1024,
			WriteQueueLimit: 64 * 1024,
			KeepAlive:       true,
		},
		SSE: SSE{
			KeepaliveInterval: 30,
		},
		Replay: Replay{
			Backend:  "none",
			Capacity: 256,
		},
		Management: Management{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
