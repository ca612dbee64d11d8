package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlasxyz/atlas/config"
	"github.com/atlasxyz/atlas/ipfscache"
	"github.com/atlasxyz/atlas/kafkasink"
	"github.com/atlasxyz/atlas/pending"
	atlaslog "github.com/atlasxyz/atlas/pkg/log"
	"github.com/atlasxyz/atlas/pipeline"
	"github.com/atlasxyz/atlas/postgres"
	"github.com/atlasxyz/atlas/source/mocksource"
)

func main() {
	log := atlaslog.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	producer, err := kafkasink.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create kafka producer")
	}
	defer producer.Close()

	if err := producer.EnsureTopic(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure kafka topic")
	}
	emitter := kafkasink.NewEmitter(producer, log)

	var checkpoint pipeline.Checkpointer
	var prefetch *ipfscache.Sink
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to postgres")
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure postgres schema")
		}
		checkpoint = store

		gateway := ipfscache.NewHTTPGateway(cfg.IpfsGatewayURL)
		onAdvance := func(block uint64, cursor string) {
			log.Debug().Uint64("block_number", block).Str("cursor", cursor).
				Msg("ipfscache: block's pending fetches drained")
		}
		prefetch = ipfscache.New(gateway, store, pending.New(), log, onAdvance)
	} else {
		log.Warn().Msg("DATABASE_URL not set, running without persistence")
	}

	// TODO: swap mocksource for a real substreams-backed source once
	// SUBSTREAMS_ENDPOINT wiring lands; see source.Source.
	src := mocksource.New()

	p := pipeline.New(src, emitter, checkpoint, prefetch, cfg.RootSpaceID, log)

	if blockNumber, err := p.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("restore checkpoint")
	} else if blockNumber > 0 {
		log.Info().Uint64("block_number", blockNumber).Msg("resumed from checkpoint")
	}

	if err := p.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("pipeline run")
	}

	if err := p.Close(); err != nil {
		log.Error().Err(err).Msg("pipeline close")
	}

	log.Info().Msg("atlas exited cleanly")
}
