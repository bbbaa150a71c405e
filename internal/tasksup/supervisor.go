// Package tasksup implements the Tasks Supervisor: it owns every
// configured task's reservation window, allocates an audio engine to
// tasks whose reservation has come into effect, drops the Task Actor
// of a task whose reservation has lapsed or whose window has elapsed
// entirely, and caches recently emitted streaming packets for
// redelivery. Grounded on
// domain/.../tasks/{supervisor.go,supervisor/task_timers.rs,mod.rs}.
package tasksup

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/audiocloud-domain/internal/task"
)

// TaskTimerInterval is how often the supervisor reconciles actor
// lifecycle (drop disconnected actors, delete expired tasks, activate
// newly-due ones) - grounded on tasks/supervisor/task_timers.rs's
// 100ms run_interval.
const TaskTimerInterval = 100 * time.Millisecond

// PacketSweepInterval is how often the packet cache is swept for
// expired entries - grounded on tasks/supervisor/packets.rs's 250ms
// run_interval.
const PacketSweepInterval = 250 * time.Millisecond

// DefaultTaskGrace is how long a task's reservation window is kept
// around after it lapses before the supervisor forgets it entirely -
// grounded on TaskOpts.task_grace_seconds' default of 3600s.
const DefaultTaskGrace = time.Hour

// DefaultPacketCacheRetention is how long a streaming packet is kept
// cached for redelivery - grounded on
// TaskOpts.packet_cache_max_retention_ms's default of 60000ms.
const DefaultPacketCacheRetention = 60 * time.Second

// EngineDispatcherFactory builds the dispatcher a newly activated
// task's Actor will send its EngineCommands through. Kept as a seam
// (rather than a direct internal/driverrt import) the same way
// internal/instancesup.DriverFactory avoids a premature dependency.
type EngineDispatcherFactory interface {
	NewDispatcher(engineID string) task.EngineDispatcher
}

// Reservation is the window during which a task is expected to be
// active, grounded on audiocloud_api::TaskReservation.
type Reservation struct {
	From time.Time
	To   time.Time
}

func (r Reservation) containsNow(now time.Time) bool {
	return !now.Before(r.From) && now.Before(r.To)
}

func (r Reservation) expired(now time.Time, grace time.Duration) bool {
	return r.To.Add(grace).Before(now)
}

// Config is everything the supervisor needs to know about a task
// ahead of activating it, grounded on SupervisedTask.
type Config struct {
	ID          string
	Reservation Reservation
	Spec        task.Spec
}

type supervisedTask struct {
	cfg   Config
	actor *task.Actor
	// connected tracks whether the actor's actor loop is still being
	// driven; set false once Run's context is cancelled.
	connected bool
	cancel    context.CancelFunc

	packets *packetCache
}

// Engines is the pool of audio engines tasks can be allocated onto.
// Grounded on TasksSupervisor.allocate_engine's first-fit selection
// over a HashMap<EngineId, ReferencedEngine> - SPEC_FULL.md keeps the
// single-engine assumption the original comments note ("we know we
// only have one engine, so we always pick the first") but models it
// as a slice so a second engine has a home if ever configured.
type Engines struct {
	mu  sync.Mutex
	ids []string
}

// NewEngines returns an engine pool seeded with ids.
func NewEngines(ids []string) *Engines {
	return &Engines{ids: append([]string(nil), ids...)}
}

func (e *Engines) allocate() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.ids) == 0 {
		return "", false
	}
	return e.ids[0], true
}

// Supervisor is the Tasks Supervisor.
type Supervisor struct {
	mu    sync.Mutex
	tasks map[string]*supervisedTask

	engines    *Engines
	dispatcher EngineDispatcherFactory

	taskGrace       time.Duration
	packetRetention time.Duration
	maxPacketAge    time.Duration
	maxPacketFrames int
	logger          *log.Logger
}

// New returns a Tasks Supervisor with no tasks configured.
func New(engines *Engines, dispatcher EngineDispatcherFactory, maxPacketAge time.Duration, maxPacketFrames int, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Supervisor{
		tasks:           make(map[string]*supervisedTask),
		engines:         engines,
		dispatcher:      dispatcher,
		taskGrace:       DefaultTaskGrace,
		packetRetention: DefaultPacketCacheRetention,
		maxPacketAge:    maxPacketAge,
		maxPacketFrames: maxPacketFrames,
		logger:          logger.With("component", "tasksup"),
	}
}

// SetConfiguration replaces the full set of known tasks. Tasks absent
// from configs that are currently running are left alone until their
// reservation lapses; newly-named tasks are picked up by the next
// reconciliation tick.
func (s *Supervisor) SetConfiguration(configs map[string]Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cfg := range configs {
		existing, ok := s.tasks[id]
		if !ok {
			s.tasks[id] = &supervisedTask{cfg: cfg, packets: newPacketCache()}
			continue
		}
		existing.cfg = cfg
	}
}

// Actor returns the live Task Actor for taskID, if one is currently
// running.
func (s *Supervisor) Actor(taskID string) (*task.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.actor == nil {
		return nil, false
	}
	return t.actor, true
}

// Run drives the supervisor's two independent reconciliation tickers
// until ctx is cancelled, grounded on
// tasks/supervisor.rs::started's register_task_timers +
// register_packet_cache_cleanup pair.
func (s *Supervisor) Run(ctx context.Context) {
	taskTicker := time.NewTicker(TaskTimerInterval)
	packetTicker := time.NewTicker(PacketSweepInterval)
	defer taskTicker.Stop()
	defer packetTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case now := <-taskTicker.C:
			s.runTaskTimers(ctx, now)
		case <-packetTicker.C:
			s.sweepPacketCaches()
		}
	}
}

func (s *Supervisor) runTaskTimers(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropInactiveActorsLocked()
	s.dropExpiredTasksLocked(now)
	s.activatePendingTasksLocked(ctx, now)
}

func (s *Supervisor) dropInactiveActorsLocked() {
	for id, t := range s.tasks {
		if t.actor != nil && !t.connected {
			s.logger.Debug("dropping inactive task actor", "task", id)
			t.cancel()
			t.actor = nil
		}
	}
}

func (s *Supervisor) dropExpiredTasksLocked(now time.Time) {
	for id, t := range s.tasks {
		if t.cfg.Reservation.expired(now, s.taskGrace) {
			s.logger.Debug("forgetting expired task", "task", id)
			if t.actor != nil {
				t.cancel()
			}
			delete(s.tasks, id)
		}
	}
}

func (s *Supervisor) activatePendingTasksLocked(ctx context.Context, now time.Time) {
	for id, t := range s.tasks {
		if t.actor != nil || !t.cfg.Reservation.containsNow(now) {
			continue
		}

		engineID, ok := s.engines.allocate()
		if !ok {
			s.logger.Warn("no available audio engines to start task", "task", id)
			continue
		}

		dispatcher := s.dispatcher.NewDispatcher(engineID)
		actor := task.New(id, engineID, dispatcher, s.maxPacketAge, s.maxPacketFrames, s.logger)
		actor.SetSpec(t.cfg.Spec)

		actorCtx, cancel := context.WithCancel(ctx)
		t.actor = actor
		t.connected = true
		t.cancel = cancel

		go func(id string, t *supervisedTask) {
			actor.Run(actorCtx)
			s.mu.Lock()
			t.connected = false
			s.mu.Unlock()
		}(id, t)

		go s.drainEvents(actorCtx, t, actor)

		s.logger.Info("activated task", "task", id, "engine", engineID)
	}
}

func (s *Supervisor) drainEvents(ctx context.Context, t *supervisedTask, actor *task.Actor) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-actor.Events():
			if !ok {
				return
			}
			if pr, ok := ev.(task.PacketReady); ok {
				t.packets.store(pr.Packet)
			}
		}
	}
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.actor != nil {
			t.cancel()
			t.actor = nil
		}
	}
}

func (s *Supervisor) sweepPacketCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		t.packets.evictOlderThan(s.packetRetention)
	}
}

// GetPacket returns a previously cached streaming packet for redelivery.
func (s *Supervisor) GetPacket(taskID, playID string, serial uint64) (task.StreamingPacket, bool) {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return task.StreamingPacket{}, false
	}
	return t.packets.get(playID, serial)
}
