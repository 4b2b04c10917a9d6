package config

// RPC groups the JSON-RPC listener policy.
type RPC struct {
	// JWTSecret signs and verifies bearer tokens. QUEST_JWT_SECRET overrides it.
	JWTSecret          string `toml:"JWTSecret"`
	JWTIssuer          string `toml:"JWTIssuer"`
	RateLimitPerMinute uint32 `toml:"RateLimitPerMinute"`
	TrustProxyHeaders  bool   `toml:"TrustProxyHeaders"`
	MaxRequestBytes    int64  `toml:"MaxRequestBytes"`
	ReadTimeoutSecs    uint32 `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   uint32 `toml:"WriteTimeoutSecs"`
}

// Log controls the structured logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}
