package sambung

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs named periodic tasks on an injected clock. Tasks are
// individually cancellable and replaced wholesale when re-registered under
// the same name; nothing here is ambient or global.
type Scheduler struct {
	clock clock.Clock
	mu    sync.Mutex
	tasks map[string]*scheduledTask
}

type scheduledTask struct {
	ticker *clock.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewScheduler creates a scheduler driven by clk.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock: clk,
		tasks: make(map[string]*scheduledTask),
	}
}

// Every registers fn to run each interval under name, replacing any task
// already registered with that name.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	if old, exists := s.tasks[name]; exists {
		stopTask(old)
	}
	task := &scheduledTask{
		ticker: s.clock.Ticker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.tasks[name] = task
	s.mu.Unlock()

	go func() {
		defer close(task.done)
		for {
			select {
			case <-task.ticker.C:
				fn()
			case <-task.stop:
				task.ticker.Stop()
				return
			}
		}
	}()
}

// Stop cancels the named task. Stopping an unknown name is a no-op.
func (s *Scheduler) Stop(name string) {
	s.mu.Lock()
	task, exists := s.tasks[name]
	if exists {
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	if exists {
		stopTask(task)
	}
}

// StopAll cancels every task and waits for their loops to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for name, task := range s.tasks {
		tasks = append(tasks, task)
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		stopTask(task)
	}
}

// Names returns the currently registered task names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

func stopTask(task *scheduledTask) {
	close(task.stop)
	<-task.done
}
