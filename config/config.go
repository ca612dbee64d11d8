// Package config loads Atlas's process configuration from the environment,
// once, at startup.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atlasxyz/atlas/events"
)

// Config is the fully-resolved process configuration.
type Config struct {
	KafkaBroker   string
	KafkaTopic    string
	KafkaUsername string
	KafkaPassword string
	KafkaSSLCAPEM string

	RootSpaceID events.SpaceId

	DatabaseURL string

	IpfsGatewayURL string

	SubstreamsEndpoint string
	SubstreamsAPIToken string
	StartBlock         uint64
	EndBlock           uint64
}

// Load reads Config from the process environment. ATLAS_ROOT_SPACE_ID is
// always required; DATABASE_URL is only validated as present by the caller
// once it knows whether it's running against a real persistence backend
// (tests frequently run without one).
func Load() (*Config, error) {
	rootHex := os.Getenv("ATLAS_ROOT_SPACE_ID")
	if rootHex == "" {
		return nil, fmt.Errorf("config: ATLAS_ROOT_SPACE_ID is required")
	}
	rootID, err := parseSpaceID(rootHex)
	if err != nil {
		return nil, fmt.Errorf("config: ATLAS_ROOT_SPACE_ID: %w", err)
	}

	cfg := &Config{
		KafkaBroker:   getenvDefault("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:    getenvDefault("KAFKA_TOPIC", "topology.canonical"),
		KafkaUsername: os.Getenv("KAFKA_USERNAME"),
		KafkaPassword: os.Getenv("KAFKA_PASSWORD"),
		KafkaSSLCAPEM: os.Getenv("KAFKA_SSL_CA_PEM"),
		RootSpaceID:   rootID,
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		IpfsGatewayURL: getenvDefault("IPFS_GATEWAY_URL", "https://ipfs.io/ipfs"),

		SubstreamsEndpoint: os.Getenv("SUBSTREAMS_ENDPOINT"),
		SubstreamsAPIToken: os.Getenv("SUBSTREAMS_API_TOKEN"),
	}

	if v := os.Getenv("START_BLOCK"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: START_BLOCK: %w", err)
		}
		cfg.StartBlock = n
	}
	if v := os.Getenv("END_BLOCK"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: END_BLOCK: %w", err)
		}
		cfg.EndBlock = n
	}

	return cfg, nil
}

// SASLEnabled reports whether Kafka SASL/SSL should be configured, the way
// the teacher's producer toggles security.protocol on username/password
// presence.
func (c *Config) SASLEnabled() bool {
	return c.KafkaUsername != "" && c.KafkaPassword != ""
}

// RequireDatabaseURL validates DatabaseURL is set, for callers (production
// entry points) that require real persistence.
func (c *Config) RequireDatabaseURL() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseSpaceID(s string) (events.SpaceId, error) {
	var id events.SpaceId
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("expected %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}
