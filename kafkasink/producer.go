// Package kafkasink delivers CanonicalGraphUpdated messages to the
// configured Kafka topic, grounded on the teacher's franz-go consumer
// wiring (internal/execution/worker.go) turned around into a producer, and
// the original Rust implementation's AtlasProducer tuning knobs.
package kafkasink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/atlasxyz/atlas/config"
)

// Producer owns the franz-go client used to publish CanonicalGraphUpdated
// records, plus an admin client for startup preflight checks.
type Producer struct {
	client *kgo.Client
	admin  *kadm.Client
	topic  string
}

// New builds a Producer from cfg, configuring SASL/SSL when KAFKA_USERNAME
// and KAFKA_PASSWORD are both set, matching the original's
// security.protocol=SASL_SSL toggle.
func New(cfg *config.Config) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.KafkaBroker, ",")...),
		kgo.ClientID("atlas-producer"),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		kgo.MaxBufferedRecords(100_000),
		kgo.ProducerBatchMaxBytes(1 << 20),
		kgo.RecordDeliveryTimeout(5 * time.Second),
	}

	if cfg.SASLEnabled() {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.KafkaUsername,
			Pass: cfg.KafkaPassword,
		}.AsMechanism()))

		tlsCfg := &tls.Config{}
		if cfg.KafkaSSLCAPEM != "" {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM([]byte(cfg.KafkaSSLCAPEM)) {
				return nil, fmt.Errorf("kafkasink: KAFKA_SSL_CA_PEM did not contain any usable certificates")
			}
			tlsCfg.RootCAs = pool
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: create client: %w", err)
	}

	return &Producer{client: client, admin: kadm.NewClient(client), topic: cfg.KafkaTopic}, nil
}

// EnsureTopic creates the configured topic if it doesn't already exist. It
// tolerates a concurrent creator racing it to the same topic.
func (p *Producer) EnsureTopic(ctx context.Context) error {
	resp, err := p.admin.CreateTopics(ctx, -1, -1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafkasink: ensure topic %q: %w", p.topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !isTopicExistsErr(t.Err) {
			return fmt.Errorf("kafkasink: create topic %q: %w", p.topic, t.Err)
		}
	}
	return nil
}

func isTopicExistsErr(err error) bool {
	return strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") || strings.Contains(err.Error(), "already exists")
}

// Send publishes a single record, blocking until the broker acknowledges it
// or ctx is cancelled.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	result := p.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("kafkasink: produce to %q: %w", p.topic, err)
	}
	return nil
}

// Close flushes any buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
