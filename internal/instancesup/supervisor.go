// Package instancesup implements the Instance Supervisor: it tracks
// which instance drivers are currently registered, derives the
// configuration each Fixed-Instance Actor needs from the domain's
// instance routing table, and starts/stops those actors as drivers
// come and go - grounded on
// original_source/domain/audiocloud-domain-server/src/fixed_instances/
// drivers.rs and supervisor/{on_instance_driver_registration,
// update_instance_actors}.rs.
package instancesup

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

// DriverOfflineTimeout is how long a driver may go without checking in
// before its instances are torn down - grounded on drivers.rs's
// `Duration::from_secs(15)`.
const DriverOfflineTimeout = 15 * time.Second

// ReconcileInterval is how often the supervisor sweeps for stale
// drivers and config drift - grounded on drivers.rs's
// `ctx.run_interval(Duration::from_secs(1), Self::update)`.
const ReconcileInterval = time.Second

// InstanceConfig is the subset of an instance's cloud configuration
// the supervisor needs to stand up a Fixed-Instance Actor for it -
// grounded on audiocloud-api's FixedInstanceConfig.
type InstanceConfig struct {
	ID                string
	DriverID          string
	Power             *fixedinstance.PowerConfig // nil: no power controller
	HasMedia          bool
	DefaultParameters map[string]float64
}

// DriverFactory builds the transport an instance's actor uses to talk
// to its driver process. The concrete implementation (wire protocol,
// reconnect handling) lives in internal/driverrt; instancesup only
// depends on the Driver interface so it can be tested without a real
// driver process.
type DriverFactory interface {
	NewDriver(driverID, instanceID string) fixedinstance.Driver
}

type registeredDriver struct {
	lastSeen time.Time
	baseURL  string
}

type supervisedInstance struct {
	actor  *fixedinstance.Actor
	cancel context.CancelFunc
}

// Supervisor is the Instance Supervisor.
type Supervisor struct {
	mu sync.Mutex

	logger  *log.Logger
	drivers DriverFactory

	registeredDrivers map[string]*registeredDriver
	config            map[string]InstanceConfig
	running           map[string]*supervisedInstance
}

// New returns a Supervisor with no drivers registered and no
// configuration loaded.
func New(drivers DriverFactory, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Supervisor{
		logger:            logger,
		drivers:           drivers,
		registeredDrivers: make(map[string]*registeredDriver),
		config:            make(map[string]InstanceConfig),
		running:           make(map[string]*supervisedInstance),
	}
}

// RegisterDriver records that driverID has checked in, grounded on
// drivers.rs::Handler<RegisterInstanceDriver>. Calling it for a
// driver that was previously considered offline brings its instances
// back up on the next Reconcile.
func (s *Supervisor) RegisterDriver(driverID, baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredDrivers[driverID] = &registeredDriver{lastSeen: time.Now(), baseURL: baseURL}
}

// SetConfiguration replaces the full set of instances the domain
// knows about, grounded on drivers.rs::Handler<NotifyDomainConfiguration>.
func (s *Supervisor) SetConfiguration(instances map[string]InstanceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = make(map[string]InstanceConfig, len(instances))
	for id, cfg := range instances {
		s.config[id] = cfg
	}
}

// Actor returns the running actor for instanceID, if one is currently
// active.
func (s *Supervisor) Actor(instanceID string) (*fixedinstance.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.running[instanceID]
	if !ok {
		return nil, false
	}
	return inst.actor, true
}

// Run periodically reconciles actors against configuration and drops
// drivers that have gone quiet, until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.expireStaleDrivers()
			s.reconcileActors(ctx)
		}
	}
}

func (s *Supervisor) expireStaleDrivers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, driver := range s.registeredDrivers {
		if now.Sub(driver.lastSeen) > DriverOfflineTimeout {
			s.logger.Warn("driver has not checked in, removing", "driver", id)
			delete(s.registeredDrivers, id)
		}
	}
}

// reconcileActors starts an actor for every configured instance whose
// driver is currently registered, and stops any actor whose instance
// fell out of configuration or whose driver went offline - grounded
// on update_instance_actors.rs's per-tick insert-missing/retain-known
// sweep.
func (s *Supervisor) reconcileActors(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cfg := range s.config {
		if _, ok := s.registeredDrivers[cfg.DriverID]; !ok {
			continue
		}
		if _, running := s.running[id]; running {
			continue
		}
		s.startActorLocked(ctx, id, cfg)
	}

	for id, inst := range s.running {
		cfg, stillConfigured := s.config[id]
		_, driverOnline := s.registeredDrivers[cfg.DriverID]
		if !stillConfigured || !driverOnline {
			inst.cancel()
			delete(s.running, id)
		}
	}
}

func (s *Supervisor) startActorLocked(ctx context.Context, instanceID string, cfg InstanceConfig) {
	var power *fixedinstance.Power
	if cfg.Power != nil {
		power = fixedinstance.NewPower(*cfg.Power)
	}
	var media *fixedinstance.Media
	if cfg.HasMedia {
		media = fixedinstance.NewMedia()
	}

	driver := s.drivers.NewDriver(cfg.DriverID, instanceID)
	actor := fixedinstance.New(instanceID, power, media, driver, cfg.DefaultParameters, s.logger)

	actorCtx, cancel := context.WithCancel(ctx)
	go actor.Run(actorCtx)

	s.running[instanceID] = &supervisedInstance{actor: actor, cancel: cancel}
	s.logger.Info("started fixed-instance actor", "instance", instanceID, "driver", cfg.DriverID)
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, inst := range s.running {
		inst.cancel()
		delete(s.running, id)
	}
}
