// Package engine assembles the notification engine from configuration: the
// datastore, the delivery gateway, metrics, and the trigger runner. Commands
// build an Engine and pick which surfaces to start.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/datastore"
	"github.com/nudgeworks/nudge-go/internal/errors"
	"github.com/nudgeworks/nudge-go/internal/gateway"
	"github.com/nudgeworks/nudge-go/internal/observability"
	"github.com/nudgeworks/nudge-go/internal/scheduler"
	"github.com/nudgeworks/nudge-go/internal/trigger"
)

// Engine holds the assembled components. Gateway is nil when delivery is
// disabled; the dispatcher handles that case.
type Engine struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Gateway  gateway.Gateway
	Registry *prometheus.Registry
	Metrics  *observability.EngineMetrics
	Runner   *trigger.Runner
}

// New builds the engine. The datastore is opened before returning; callers
// own Close.
func New(settings *conf.Settings) (*Engine, error) {
	if err := datastore.InitializeLogger(""); err != nil {
		return nil, err
	}
	if err := trigger.InitializeLogger(""); err != nil {
		return nil, err
	}
	if err := scheduler.InitializeLogger(""); err != nil {
		return nil, err
	}

	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no database enabled in configuration").
			Component("engine").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	gw, err := gateway.New(&settings.Gateway)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewEngineMetrics(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dispatcher := trigger.NewDispatcher(store, gw, metrics)
	gate := trigger.NewGate(store, metrics)
	runner := trigger.NewRunner(store, dispatcher, gate, metrics,
		settings.Scheduler.MaxConcurrentUsers)

	return &Engine{
		Settings: settings,
		Store:    store,
		Gateway:  gw,
		Registry: registry,
		Metrics:  metrics,
		Runner:   runner,
	}, nil
}

// Close releases the datastore and the package log files.
func (e *Engine) Close() error {
	err := e.Store.Close()
	_ = trigger.CloseLogger()
	_ = scheduler.CloseLogger()
	_ = datastore.CloseLogger()
	return err
}
