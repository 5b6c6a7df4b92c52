// Package app is the sample host application driving a Stack: it answers
// the full application callback surface (original_source/cipster_api.h's
// ApplicationInitialization / HandleApplication / CheckIoConnectionEvent /
// AfterAssemblyDataReceived / BeforeAssemblyDataSend / ResetDevice /
// ResetDeviceToInitialConfiguration / RunIdleChanged) and bridges connection
// and assembly events out to MQTT, Kafka, Redis, and an HTTP status
// endpoint, in place of CIPster's POSIX sample_application.cc.
package app

import (
	"sync"

	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/connmgr"
	"github.com/tturner/cipadapter/internal/logging"
)

// AssemblyReader resolves an assembly instance's current buffer contents;
// the stack binds this after constructing its registrar, since App cannot
// import internal/stack without a cycle.
type AssemblyReader func(instanceID uint16) (data []byte, ok bool)

// ConnectionSummary is the subset of a connmgr.Conn the HTTP status
// endpoint and Redis snapshot publish externally.
type ConnectionSummary struct {
	ConsumingPoint int32  `json:"consuming_point"`
	ProducingPoint int32  `json:"producing_point"`
	State          string `json:"state"`
	InstanceType   string `json:"instance_type"`
}

// ConnectionsReader returns a point-in-time summary of the active
// connection list; the stack binds this the same way as AssemblyReader.
type ConnectionsReader func() []ConnectionSummary

// App is this repo's sample host application.
type App struct {
	logger *logging.Logger
	cfg    config.TelemetryConfig

	mu          sync.RWMutex
	assemblyFn  AssemblyReader
	connsFn     ConnectionsReader
	resetDevice func() error

	mqtt  *mqttBridge
	kafka *kafkaBridge
	redis *redisBridge
	http  *httpBridge

	tickCount uint64
}

// New builds an App wired to cfg's enabled telemetry bridges (a bridge whose
// address is left empty in cfg is disabled). Call Start to connect the
// bridges and BindStack once the Stack exists to give App read access to
// live assembly and connection state.
func New(cfg config.TelemetryConfig, logger *logging.Logger) *App {
	a := &App{logger: logger, cfg: cfg}
	if cfg.MQTTBroker != "" {
		a.mqtt = newMQTTBridge(cfg.MQTTBroker, cfg.MQTTTopic, logger)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		a.kafka = newKafkaBridge(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	if cfg.RedisAddr != "" {
		a.redis = newRedisBridge(cfg.RedisAddr, cfg.RedisKey, logger)
	}
	if cfg.HTTPListenAddr != "" {
		a.http = newHTTPBridge(cfg.HTTPListenAddr, a, logger)
	}
	return a
}

// BindStack gives App read access to live assembly and connection state.
// Called once after stack.New, breaking the app/stack construction cycle.
func (a *App) BindStack(assemblyFn AssemblyReader, connsFn ConnectionsReader, resetDevice func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.assemblyFn = assemblyFn
	a.connsFn = connsFn
	a.resetDevice = resetDevice
}

// Start connects any configured bridges. Safe to call with no bridges
// configured; each bridge no-ops in that case.
func (a *App) Start() error {
	if a.mqtt != nil {
		if err := a.mqtt.connect(); err != nil {
			return err
		}
	}
	if a.http != nil {
		a.http.start()
	}
	return nil
}

// Stop disconnects any configured bridges.
func (a *App) Stop() {
	if a.mqtt != nil {
		a.mqtt.disconnect()
	}
	if a.kafka != nil {
		a.kafka.close()
	}
	if a.redis != nil {
		a.redis.close()
	}
	if a.http != nil {
		a.http.stop()
	}
}

// ApplicationInitialization runs once before the stack starts serving
// (cipster_api.h's ApplicationInitialization). There is nothing this
// adapter needs to do beyond what Start already covers.
func (a *App) ApplicationInitialization() error {
	a.logger.Info("application initialized")
	return nil
}

// HandleApplication runs once per TIMER_TICK, before transmission triggers
// are evaluated (spec.md §4.8). It drives the periodic Redis snapshot.
func (a *App) HandleApplication() error {
	a.tickCount++
	if a.redis == nil || a.connsFn == nil {
		return nil
	}
	const snapshotEveryTicks = 100 // ~1s at the 10ms TickPeriod stack.New gives the driver
	if a.tickCount%snapshotEveryTicks != 0 {
		return nil
	}
	return a.redis.snapshot(a.connsFn())
}

// CheckIoConnectionEvent logs and audits a connection lifecycle transition.
func (a *App) CheckIoConnectionEvent(consumingPoint, producingPoint int32, event connmgr.ConnectionEvent) {
	name := connectionEventName(event)
	a.logger.Info("connection event %s: consuming=%d producing=%d", name, consumingPoint, producingPoint)
	if a.kafka != nil {
		a.kafka.publishEvent(name, consumingPoint, producingPoint)
	}
}

// AfterAssemblyDataReceived publishes the assembly's new contents to MQTT.
func (a *App) AfterAssemblyDataReceived(instanceID uint16) error {
	if a.mqtt == nil || a.assemblyFn == nil {
		return nil
	}
	data, ok := a.assemblyFn(instanceID)
	if !ok {
		return nil
	}
	a.mqtt.publish(instanceID, data)
	return nil
}

// BeforeAssemblyDataSend runs immediately before a produce; this sample
// application has nothing to veto or transform, so it always proceeds.
func (a *App) BeforeAssemblyDataSend(instanceID uint16) bool {
	return true
}

// ResetDevice is the application's device-reset callback: it logs the
// request and runs the reset hook given to BindStack, if any. The Identity
// object's Reset service does not call it.
func (a *App) ResetDevice() error {
	a.logger.Info("device reset requested")
	if a.resetDevice != nil {
		return a.resetDevice()
	}
	return nil
}

// ResetDeviceToInitialConfiguration implements Reset service type 2.
// Identical to ResetDevice here since there is no persisted configuration
// to restore (spec.md §1 Non-goals: no persistent config storage).
func (a *App) ResetDeviceToInitialConfiguration() error {
	return a.ResetDevice()
}

// RunIdleChanged logs a run/idle header transition on a Class-0 connection.
func (a *App) RunIdleChanged(runIdle uint32) {
	a.logger.Debug("run/idle header changed: %#x", runIdle)
}

func connectionEventName(event connmgr.ConnectionEvent) string {
	switch event {
	case connmgr.EventOpened:
		return "opened"
	case connmgr.EventClosed:
		return "closed"
	case connmgr.EventTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}
