package integrationtest

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/atlasxyz/atlas/config"
	"github.com/atlasxyz/atlas/kafkasink"
	atlaslog "github.com/atlasxyz/atlas/pkg/log"
	"github.com/atlasxyz/atlas/pb"
	"github.com/atlasxyz/atlas/pipeline"
	"github.com/atlasxyz/atlas/source/mocksource"
)

// Broker is the narrow surface the test needs from a running Kafka-wire
// broker, so the Redpanda-backed implementation below can be swapped for
// another one without touching the test body.
type Broker interface {
	Init() error
	Close() error
	BootstrapServers() []string
}

// RedpandaBroker runs a single-node Redpanda container reachable on a
// fixed, kernel-assigned port, the way the teacher's integration suite
// ran its broker under test.
type RedpandaBroker struct {
	RedpandaVersion  string
	bootstrapServers []string
	testcontainer    testcontainers.Container
}

func (b *RedpandaBroker) Init() error {
	ctx := context.Background()
	port, err := GetFreePort()
	if err != nil {
		return err
	}
	req := testcontainers.ContainerRequest{
		Image:      fmt.Sprintf("docker.redpanda.com/redpandadata/redpanda:%s", b.RedpandaVersion),
		WaitingFor: wait.ForLog("Successfully started Redpanda!").WithStartupTimeout(60 * time.Second),
		Cmd: []string{
			"redpanda",
			"start",
			"--smp", "1",
			"--reserve-memory", "0M",
			"--overprovisioned",
			"--node-id", "0",
			"--kafka-addr", fmt.Sprintf("OUTSIDE://0.0.0.0:%d", port),
			"--advertise-kafka-addr", fmt.Sprintf("OUTSIDE://localhost:%d", port),
		},
	}

	req.ExposedPorts = []string{
		fmt.Sprintf("%d:%d/tcp", port, port),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}

	hostIP, err := container.Host(ctx)
	if err != nil {
		return err
	}

	mappedPort, err := container.MappedPort(ctx, nat.Port(fmt.Sprintf("%d", port)))
	if err != nil {
		return err
	}

	b.bootstrapServers = []string{fmt.Sprintf("%s:%d", hostIP, mappedPort.Int())}
	b.testcontainer = container
	return nil
}

func (b *RedpandaBroker) Close() error {
	return b.testcontainer.Terminate(context.Background())
}

func (b *RedpandaBroker) BootstrapServers() []string {
	return b.bootstrapServers
}

// GetFreePort asks the kernel for a free open port that is ready to use.
func GetFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// TestCanonicalGraphRoundTripsThroughKafka runs the full pipeline (mock
// topology source -> graph state -> canonical processor -> kafkasink
// emitter) against a real, containerized broker, then consumes the topic
// back out with a plain franz-go client and decodes it with the hand-built
// wire codec, confirming the end-to-end wire format is what a downstream
// consumer would actually see.
func TestCanonicalGraphRoundTripsThroughKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainer test in short mode")
	}

	broker := &RedpandaBroker{RedpandaVersion: "v24.1.1"}
	assert.NoError(t, broker.Init())
	defer broker.Close()

	topic := fmt.Sprintf("atlas-canonical-%d", time.Now().UnixNano())

	cfg := &config.Config{
		KafkaBroker: broker.BootstrapServers()[0],
		KafkaTopic:  topic,
		RootSpaceID: mocksource.Root,
	}

	producer, err := kafkasink.New(cfg)
	assert.NoError(t, err)
	defer producer.Close()
	assert.NoError(t, producer.EnsureTopic(context.Background()))

	log := atlaslog.New()
	emitter := kafkasink.NewEmitter(producer, log)

	p := pipeline.New(mocksource.New(), emitter, nil, nil, cfg.RootSpaceID, log)
	assert.NoError(t, p.Run(context.Background()))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.KafkaBroker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	assert.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var updates []*pb.CanonicalGraphUpdated
	for len(updates) == 0 {
		fetches := consumer.PollFetches(ctx)
		fetches.EachError(func(_ string, _ int32, err error) {
			assert.NoError(t, err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			update, err := pb.UnmarshalCanonicalGraphUpdated(r.Value)
			assert.NoError(t, err)
			updates = append(updates, update)
		})
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for canonical graph update")
		}
	}

	last := updates[len(updates)-1]
	assert.Equal(t, mocksource.Root[:], last.RootID)
	assert.Equal(t, 11, len(last.CanonicalSpaceIDs))
	assert.True(t, last.Meta != nil)
}

// TestEnsureTopicToleratesConcurrentCreation exercises the idempotent
// topic-creation path against a real admin client, the way two pipeline
// replicas racing at startup would.
func TestEnsureTopicToleratesConcurrentCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainer test in short mode")
	}

	broker := &RedpandaBroker{RedpandaVersion: "v24.1.1"}
	assert.NoError(t, broker.Init())
	defer broker.Close()

	cfg := &config.Config{
		KafkaBroker: broker.BootstrapServers()[0],
		KafkaTopic:  fmt.Sprintf("atlas-canonical-%d", time.Now().UnixNano()),
		RootSpaceID: mocksource.Root,
	}

	p1, err := kafkasink.New(cfg)
	assert.NoError(t, err)
	defer p1.Close()
	p2, err := kafkasink.New(cfg)
	assert.NoError(t, err)
	defer p2.Close()

	assert.NoError(t, p1.EnsureTopic(context.Background()))
	assert.NoError(t, p2.EnsureTopic(context.Background()))

	assert.NoError(t, p1.Send(context.Background(), []byte("k"), []byte("v")))
}
