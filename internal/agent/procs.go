package agent

import (
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const defaultTurnTimeout = 5 * time.Minute

// ErrTurnActive indicates the conversation already has a turn in flight.
var ErrTurnActive = errors.New("conversation already has an active turn")

type procEntry struct {
	cmd       *exec.Cmd
	startedAt time.Time
	timer     *time.Timer
}

// Supervisor owns the registry of in-flight agent subprocesses, keyed by
// conversation id. It enforces one turn at a time per conversation, arms a
// forced-termination timer per entry, and routes cancellation. It never
// inspects subprocess output; deregistration is the caller's job.
type Supervisor struct {
	timeout time.Duration

	mu    sync.Mutex
	procs map[string]*procEntry
}

// NewSupervisor creates a supervisor with the given turn timeout
// (defaultTurnTimeout when zero or negative).
func NewSupervisor(timeout time.Duration) *Supervisor {
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}
	return &Supervisor{
		timeout: timeout,
		procs:   make(map[string]*procEntry),
	}
}

// Start registers and launches the subprocess for a conversation. The
// check-and-register happens under one lock acquisition so two concurrent
// turns for the same conversation cannot interleave.
func (s *Supervisor) Start(conversationID string, cmd *exec.Cmd) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.procs[conversationID]; exists {
		return fmt.Errorf("%w: conversation %s", ErrTurnActive, conversationID)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn agent process: %w", err)
	}

	entry := &procEntry{cmd: cmd, startedAt: time.Now()}
	entry.timer = time.AfterFunc(s.timeout, func() {
		s.forceKill(conversationID)
	})
	s.procs[conversationID] = entry
	return nil
}

// Cancel sends a termination signal to the registered process, if any, and
// reports whether an entry was found. The entry stays registered: the
// turn's own close handler observes the exit and deregisters.
func (s *Supervisor) Cancel(conversationID string) bool {
	s.mu.Lock()
	entry, ok := s.procs[conversationID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if entry.cmd.Process != nil {
		_ = entry.cmd.Process.Signal(syscall.SIGTERM)
	}
	return true
}

// IsActive reports whether a turn is in flight for the conversation.
func (s *Supervisor) IsActive(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[conversationID]
	return ok
}

// Active returns the ids of all conversations with a turn in flight.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	return ids
}

// Remove deregisters a conversation and disarms its termination timer.
// Called by the turn once the process has exited or failed to spawn.
func (s *Supervisor) Remove(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.procs[conversationID]; ok {
		entry.timer.Stop()
		delete(s.procs, conversationID)
	}
}

// forceKill fires when a turn outlives the timeout while still registered.
func (s *Supervisor) forceKill(conversationID string) {
	s.mu.Lock()
	entry, ok := s.procs[conversationID]
	s.mu.Unlock()
	if !ok {
		return
	}
	log.Printf("agent: turn timeout for conversation %s after %v, killing process", conversationID, s.timeout)
	if entry.cmd.Process != nil {
		_ = entry.cmd.Process.Kill()
	}
}
