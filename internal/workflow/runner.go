package workflow

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"sitebridge.dev/phasebridge/internal/comm"
	"sitebridge.dev/phasebridge/internal/config"
	"sitebridge.dev/phasebridge/internal/dispatch"
	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
	"sitebridge.dev/phasebridge/internal/pipeline"
	"sitebridge.dev/phasebridge/internal/store"
)

// Runner owns the daemon's full lifecycle: startup wiring, the per-tick
// phase task, signal handling, and shutdown. It plays the role the
// source system's process supervisor plays, stripped of anything this
// daemon has no use for (no CLI control channel, no task manager).
type Runner struct {
	cfg        *config.GlobalConfig
	configPath string
	pidFile    string

	store          *store.Store
	ingestAdapter  comm.Adapter
	publishAdapter comm.Adapter
	phaseEngine    engine.PhaseEngine
	selector       engine.PipelineSelector
	registry       *pipeline.Registry
	dispatchEngine engine.EventDispatchEngine
	taskCtx        *pipeline.TaskContext
	metricsServer  *metrics.Server

	mu            sync.Mutex
	previousPhase model.Phase
	hasPrevious   bool
	lastHeartbeat time.Time

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
}

// New loads configuration and the pipeline schedule, then wires every
// pluggable engine into a ready-to-Start Runner. Any failure here is a
// startup configuration error (spec.md §6 exit code 1).
func New(configPath string) (*Runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfigInvalid, err)
	}

	sched, err := config.LoadPipelineSchedule(cfg.Pipeline.SchedulePath)
	if err != nil {
		return nil, err
	}

	scheduler, err := buildScheduler(cfg)
	if err != nil {
		return nil, err
	}
	phaseEngine, err := buildPhaseEngine(cfg, scheduler)
	if err != nil {
		return nil, err
	}
	selector, err := buildSelector(cfg)
	if err != nil {
		return nil, err
	}
	taskEngs, err := buildTaskEngines(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := buildRegistry(cfg, sched, taskEngs)
	if err != nil {
		return nil, err
	}

	edgeStore := store.New(cfg.MaxAge(), 0, logging.L())

	ingestAdapter, err := buildAdapter(cfg, cfg.EdgeEvent.Backend, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	var publishAdapter comm.Adapter
	if cfg.Phase.PublishBackend == cfg.EdgeEvent.Backend {
		publishAdapter = ingestAdapter
	} else {
		publishAdapter, err = buildAdapter(cfg, cfg.Phase.PublishBackend, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
	}

	taskCtx := &pipeline.TaskContext{Store: edgeStore, Adapter: ingestAdapter}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		cfg:            cfg,
		configPath:     configPath,
		pidFile:        cfg.Control.PIDFile,
		store:          edgeStore,
		ingestAdapter:  ingestAdapter,
		publishAdapter: publishAdapter,
		phaseEngine:    phaseEngine,
		selector:       selector,
		registry:       registry,
		dispatchEngine: taskEngs.dispatch,
		taskCtx:        taskCtx,
		metricsServer:  metrics.NewServer(cfg.Metrics.Listen, "/metrics"),
		ctx:            ctx,
		cancel:         cancel,
		shutdownChan:   make(chan struct{}),
	}, nil
}

// buildAdapter resolves the comm.Adapter for a backend name ("http" or
// "mqtt"), shared by both the ingestion role and, when configured the
// same, the phase publish role.
func buildAdapter(cfg *config.GlobalConfig, backend, serviceName string) (comm.Adapter, error) {
	switch backend {
	case "http":
		return comm.NewHttpEdgeCommAdapter(cfg.EdgeEvent.HTTPAddr), nil
	case "mqtt":
		brokerURL := fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
		return comm.NewMqttEdgeCommAdapter(
			brokerURL,
			cfg.MQTT.ClientID,
			cfg.MQTT.EventsTopic,
			cfg.MQTT.PhaseTopic,
			serviceName,
			byte(cfg.MQTT.QoS),
			cfg.MQTT.Retain,
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown comm backend %q", model.ErrConfigInvalid, backend)
	}
}

// RegisterHandler adds a dispatch handler before Start. Handler wiring
// (what an external sink actually does with a DispatchEvent) is left to
// the embedder; the built-in isolating dispatch engine only needs a name
// to route to.
func (r *Runner) RegisterHandler(name string, h dispatch.Handler) error {
	d, ok := r.dispatchEngine.(*dispatch.IsolatingDispatchEngine)
	if !ok {
		return fmt.Errorf("phasebridge: dispatch engine %T does not support handler registration", r.dispatchEngine)
	}
	d.Handlers[name] = h
	return nil
}

// Start brings up logging, the PID file, the metrics server and edge
// event ingestion, mirroring the teacher daemon's numbered startup
// sequence minus the control-channel steps this daemon doesn't have.
func (r *Runner) Start() error {
	if err := logging.Init(logging.Config{
		Level:   r.cfg.Log.Level,
		Format:  r.cfg.Log.Format,
		Pattern: r.cfg.Log.Pattern,
		File: logging.FileConfig{
			Enabled:    r.cfg.Log.File.Enabled,
			Path:       r.cfg.Log.File.Path,
			MaxSizeMB:  r.cfg.Log.File.MaxSizeMB,
			MaxBackups: r.cfg.Log.File.MaxBackups,
			MaxAgeDays: r.cfg.Log.File.MaxAgeDays,
			Compress:   r.cfg.Log.File.Compress,
		},
	}); err != nil {
		return fmt.Errorf("%w: %v", model.ErrConfigInvalid, err)
	}

	log := logging.L().WithField("component", "workflow_runner")
	log.WithField("service", r.cfg.ServiceName).Info("starting phasebridge")

	if err := r.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if r.cfg.Metrics.Enabled {
		if err := r.metricsServer.Start(r.ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := r.ingestAdapter.StartEventIngestion(func(ev model.EdgeEvent) bool {
		accepted := r.store.AddEvent(time.Now(), ev)
		metrics.StoreSize.Set(float64(r.store.Len()))
		return accepted
	}); err != nil {
		return fmt.Errorf("failed to start edge event ingestion: %w", err)
	}

	log.Info("phasebridge started successfully")
	return nil
}

// Stop idempotently tears everything Start brought up back down, in
// reverse order.
func (r *Runner) Stop() {
	log := logging.L().WithField("component", "workflow_runner")
	log.Info("initiating graceful shutdown")

	if err := r.ingestAdapter.Stop(); err != nil {
		log.WithError(err).Error("error stopping ingestion adapter")
	}
	if r.publishAdapter != r.ingestAdapter {
		if err := r.publishAdapter.Stop(); err != nil {
			log.WithError(err).Error("error stopping publish adapter")
		}
	}

	if r.cfg.Metrics.Enabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.metricsServer.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("error stopping metrics server")
		}
		cancel()
	}

	if pending := r.taskCtx.DrainEvents(); len(pending) > 0 {
		log.WithField("count", len(pending)).Info("flushing pending dispatch events before shutdown")
		r.dispatchEngine.Dispatch(time.Now(), pending)
	}

	r.cancel()

	if r.sigChan != nil {
		signal.Stop(r.sigChan)
	}

	if err := r.removePIDFile(); err != nil {
		log.WithError(err).Error("error removing PID file")
	}

	log.Info("phasebridge stopped gracefully")
}

// Run blocks, ticking the selected pipeline on an interval driven by the
// active phase's configured sleep, until a shutdown signal or cancelled
// context. SIGHUP reloads the pipeline schedule without restarting.
func (r *Runner) Run(ctx context.Context) error {
	r.sigChan = make(chan os.Signal, 1)
	signal.Notify(r.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	log := logging.L().WithField("component", "workflow_runner")
	log.Info("phasebridge running, entering tick loop")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case sig := <-r.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				log.WithField("signal", sig.String()).Info("received shutdown signal")
				r.Stop()
				return nil
			case syscall.SIGHUP:
				log.Info("received reload signal")
				if err := r.Reload(); err != nil {
					log.WithError(err).Error("failed to reload pipeline schedule")
				} else {
					log.Info("pipeline schedule reloaded successfully")
				}
			}

		case <-r.shutdownChan:
			log.Info("shutdown triggered internally")
			r.Stop()
			return nil

		case <-ctx.Done():
			log.WithError(ctx.Err()).Info("context cancelled")
			r.Stop()
			return ctx.Err()

		case <-timer.C:
			sleep := r.tick()
			timer.Reset(sleep)
		}
	}
}

// Reload re-parses the pipeline schedule file and rebuilds the pipeline
// registry in place. Engine selection (*_ENGINE_CLASS) and comm backend
// are cold-reload only: changing those requires a restart, since they
// carry live connections and goroutines Reload has no safe way to tear
// down mid-tick.
func (r *Runner) Reload() error {
	sched, err := config.LoadPipelineSchedule(r.cfg.Pipeline.SchedulePath)
	if err != nil {
		return err
	}

	taskEngs, err := buildTaskEngines(r.cfg)
	if err != nil {
		return err
	}
	// Keep the running dispatch engine so handlers added through
	// RegisterHandler survive the reload.
	r.mu.Lock()
	taskEngs.dispatch = r.dispatchEngine
	r.mu.Unlock()
	registry, err := buildRegistry(r.cfg, sched, taskEngs)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.registry = registry
	r.mu.Unlock()

	return nil
}

// TriggerShutdown requests Run return on its next iteration, for
// embedders that don't rely on OS signals.
func (r *Runner) TriggerShutdown() {
	select {
	case <-r.shutdownChan:
	default:
		close(r.shutdownChan)
	}
}

func (r *Runner) writePIDFile() error {
	if r.pidFile == "" {
		return nil
	}
	return os.WriteFile(r.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (r *Runner) removePIDFile() error {
	if r.pidFile == "" {
		return nil
	}
	if err := os.Remove(r.pidFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
