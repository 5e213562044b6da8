package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "MARKETSYNC"

// DebugMode enables per-frame debug logging in the stream client.
var DebugMode = false

type Config struct {
	StreamURL   string `envconfig:"STREAM_URL" default:"wss://stream.binance.com:9443/stream"`
	RestURL     string `envconfig:"REST_URL" default:"https://api.binance.com/api/v3"`
	DepthStream string `envconfig:"DEPTH_STREAM" default:"depth20@100ms"`

	DepthLimit    int  `envconfig:"DEPTH_LIMIT" default:"20"`
	TradeLimit    int  `envconfig:"TRADE_LIMIT" default:"20"`
	DisplayDepth  int  `envconfig:"DISPLAY_DEPTH" default:"10"`
	TradeCapacity int  `envconfig:"TRADE_CAPACITY" default:"20"`
	DedupeTrades  bool `envconfig:"DEDUPE_TRADES" default:"false"`

	RestRateLimit float64       `envconfig:"REST_RATE_LIMIT" default:"10"`
	RestBurst     int           `envconfig:"REST_BURST" default:"5"`
	RestTimeout   time.Duration `envconfig:"REST_TIMEOUT" default:"10s"`

	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"5s"`
	// ReadTimeout is the liveness window of the stream; zero disables it.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"0s"`

	Reconnect         bool          `envconfig:"RECONNECT" default:"false"`
	ReconnectMin      time.Duration `envconfig:"RECONNECT_MIN" default:"500ms"`
	ReconnectMax      time.Duration `envconfig:"RECONNECT_MAX" default:"30s"`
	ReconnectFactor   float64       `envconfig:"RECONNECT_FACTOR" default:"2"`
	OutOfSeqThreshold int           `envconfig:"OUT_OF_SEQ_THRESHOLD" default:"10"`
	DegradedStart     bool          `envconfig:"DEGRADED_START" default:"false"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":8080"`
	GRPCAddr    string `envconfig:"GRPC_ADDR" default:":50051"`

	NatsURL           string `envconfig:"NATS_URL" default:""`
	NatsSubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"marketsync"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// Load reads an optional env file and decodes MARKETSYNC_* variables.
// A missing env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	DebugMode = cfg.Debug
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.StreamURL == "" {
		errs = append(errs, errors.New("stream url is required"))
	}
	if c.RestURL == "" {
		errs = append(errs, errors.New("rest url is required"))
	}
	if c.DepthStream == "" {
		errs = append(errs, errors.New("depth stream is required"))
	}
	if c.DepthLimit <= 0 || c.TradeLimit <= 0 {
		errs = append(errs, errors.New("depth and trade limits must be positive"))
	}
	if c.DisplayDepth <= 0 {
		errs = append(errs, errors.New("display depth must be positive"))
	}
	if c.TradeCapacity <= 0 {
		errs = append(errs, errors.New("trade capacity must be positive"))
	}
	if c.RestRateLimit <= 0 || c.RestBurst <= 0 {
		errs = append(errs, errors.New("rest rate limit and burst must be positive"))
	}
	if c.Reconnect && (c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin) {
		errs = append(errs, errors.New("reconnect backoff bounds are invalid"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
