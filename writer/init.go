package writer

import (
	"context"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/metrico/qryn-ai/writer/config"
	controllerv1 "github.com/metrico/qryn-ai/writer/controller"
	"github.com/metrico/qryn-ai/writer/merger"
	"github.com/metrico/qryn-ai/writer/plugins"
	"github.com/metrico/qryn-ai/writer/providers"
	apirouterv1 "github.com/metrico/qryn-ai/writer/router"
	"github.com/metrico/qryn-ai/writer/service"
	"github.com/metrico/qryn-ai/writer/store"
	"github.com/metrico/qryn-ai/writer/utils/logger"
	"github.com/metrico/qryn-ai/writer/watchdog"
)

const (
	pingAttempts = 10
	pingDelay    = time.Second
	pingTimeout  = 5 * time.Second
)

// Writer holds everything Init wired together.
type Writer struct {
	Store   store.Store
	Merger  *merger.Merger
	Service *service.IngestService

	stopWatchdog func()
}

// Init connects the merge store selected by cfg and registers the ingestion
// routes on router. Events are handed to sink.
func Init(cfg *config.QrynAIConfig, router *mux.Router, sink service.Sink) (*Writer, error) {
	factory := plugins.GetMergeStorePlugin(cfg.Merge.Store)
	if factory == nil {
		return nil, fmt.Errorf("merge store %q is not registered", cfg.Merge.Store)
	}
	st, err := (*factory)(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create merge store")
	}

	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			return st.Ping(ctx)
		},
		retry.Attempts(pingAttempts),
		retry.Delay(pingDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Error("merge store is not reachable, attempt ", n+1, ": ", err)
		}),
	)
	if err != nil {
		st.Close()
		return nil, errors.Wrap(err, "ping merge store")
	}

	m := merger.New(st, cfg.Merge.TTL, cfg.Merge.KeyPrefix)
	if cfg.Merge.TrackExpired {
		if w, ok := st.(store.ExpiryWatcher); ok {
			if err := w.WatchExpired(context.Background(), cfg.Merge.KeyPrefix+":", m.OnExpired); err != nil {
				logger.Error("expired merge tracking disabled: ", err)
			}
		}
	}

	svc := service.NewIngestService(service.IngestServiceOpts{
		Merger:         m,
		Registry:       providers.Default(),
		Sink:           sink,
		Workers:        cfg.Ingest.Workers,
		SinkRetries:    cfg.Ingest.SinkRetries,
		SinkRetryDelay: cfg.Ingest.SinkRetryDelay,
	})
	controllerv1.IngestService = svc

	middlewareConfig := controllerv1.NewMiddlewareConfig(controllerv1.WithExtraMiddlewareDefault...)
	apirouterv1.RouteOTelApis(router, middlewareConfig)

	logger.Info("merge store: ", cfg.Merge.Store, ", ttl: ", cfg.Merge.TTL)
	return &Writer{
		Store:        st,
		Merger:       m,
		Service:      svc,
		stopWatchdog: watchdog.Init(st),
	}, nil
}

func (w *Writer) Close() error {
	w.stopWatchdog()
	return w.Store.Close()
}
