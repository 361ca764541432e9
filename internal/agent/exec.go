package agent

import (
	"bufio"
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"sync"
)

const stderrBufferCap = 8 * 1024

// turnPlan is one fully-prepared subprocess invocation: the argv to run,
// where to run it, and how to translate its output lines into normalized
// events. Providers build a fresh plan per attempt because the continuity
// strategy changes between a first run and a retry.
type turnPlan struct {
	argv      []string
	dir       string
	extraEnv  []string
	normalize func(line []byte) []turnEvent
}

// planFunc prepares the plan and retry eligibility for an attempt. prior is
// RetryNone on the first attempt and the chosen strategy on the retry.
type planFunc func(prior RetryState) (turnPlan, ContinuityFlags, error)

// runTurnLoop drives a complete turn: plan, spawn, stream, reconcile, then
// either finalize or re-plan once with an adjusted strategy. The loop is
// bounded because DecideRetry never retries a retry.
func runTurnLoop(ctx context.Context, sup *Supervisor, conv *Conversation, relay *Relay, model string, overflow OverflowPredicate, makePlan planFunc) error {
	prior := RetryNone
	for {
		plan, flags, err := makePlan(prior)
		if err != nil {
			abortTurn(conv, relay, err)
			return err
		}

		state := newTurnState(conv, relay, model)
		exit, spawnErr := streamProcess(ctx, sup, conv.ID, plan, state, relay)
		if spawnErr != nil {
			if errors.Is(spawnErr, ErrTurnActive) {
				// Another turn owns this conversation's status; leave it be.
				return spawnErr
			}
			abortTurn(conv, relay, spawnErr)
			return spawnErr
		}

		text := state.reconciledText()
		pending := conv.pendingRetry != RetryNone
		next := DecideRetry(state.outcome(exit, text), flags, prior, pending, overflow)
		if next == RetryNone {
			finalizeTurn(state, exit, text)
			return nil
		}

		log.Printf("agent: retrying turn for conversation %s with strategy %q", conv.ID, next)
		// Both strategies abandon the provider-native session.
		conv.SessionID = ""
		conv.pendingRetry = next
		prior = next
	}
}

// abortTurn ends a turn that never produced a usable process: emits the
// error, restores idle, clears the transient retry marker.
func abortTurn(conv *Conversation, relay *Relay, err error) {
	conv.pendingRetry = RetryNone
	conv.Status = StatusIdle
	relay.Error(err.Error())
	relay.Status(StatusIdle)
	relay.Save()
}

// streamProcess spawns the planned subprocess under the supervisor, feeds
// its stdout through the line parser into the turn state, relays stderr
// lines, and waits for exit. The supervisor entry is always removed before
// returning. A non-nil error means the process never started.
func streamProcess(ctx context.Context, sup *Supervisor, conversationID string, plan turnPlan, state *turnState, relay *Relay) (exitInfo, error) {
	cmd := exec.CommandContext(ctx, plan.argv[0], plan.argv[1:]...)
	cmd.Dir = plan.dir
	cmd.Env = append(os.Environ(), plan.extraEnv...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return exitInfo{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return exitInfo{}, err
	}

	if err := sup.Start(conversationID, cmd); err != nil {
		return exitInfo{}, err
	}
	defer sup.Remove(conversationID)
	// The turn owns the conversation's registry entry now; persist the
	// appended user message. Saving any earlier would let a losing concurrent
	// request write a message the winning turn's save then erases.
	relay.Save()

	var stderrMu sync.Mutex
	var stderrBuf []byte
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 256*1024)
		for scanner.Scan() {
			line := scanner.Text()
			relay.Stderr(line)
			stderrMu.Lock()
			if len(stderrBuf) < stderrBufferCap {
				stderrBuf = append(stderrBuf, line...)
				stderrBuf = append(stderrBuf, '\n')
			}
			stderrMu.Unlock()
		}
	}()

	parser := &LineParser{}
	buf := make([]byte, 32*1024)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			for _, line := range parser.Feed(buf[:n]) {
				for _, ev := range plan.normalize(line) {
					state.apply(ev)
				}
			}
		}
		if readErr != nil {
			break
		}
	}
	if last := parser.Flush(); len(last) > 0 {
		for _, ev := range plan.normalize(last) {
			state.apply(ev)
		}
	}

	wg.Wait()
	waitErr := cmd.Wait()

	exit := exitInfo{err: waitErr}
	var ee *exec.ExitError
	if errors.As(waitErr, &ee) {
		exit.code = ee.ExitCode()
	}
	stderrMu.Lock()
	exit.stderr = string(stderrBuf)
	stderrMu.Unlock()
	return exit, nil
}
