package main

// AppConfig is the process-wide configuration, loaded once at startup
// via envconfig. Field names follow the BACKEND_/OUTPUT_/LOG_ prefixes
// the control plane's HTTP surface is documented against.
type AppConfig struct {
	Host      string `envconfig:"BACKEND_HOST" default:"0.0.0.0"`
	Port      int    `envconfig:"BACKEND_PORT" default:"8000"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"./output"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	PrettyLog bool   `envconfig:"LOG_PRETTY" default:"false"`
	UseRealLM bool   `envconfig:"USE_REAL_LM" default:"false"`
}
