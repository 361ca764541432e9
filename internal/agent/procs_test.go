package agent

import (
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestSupervisorRejectsSecondStart(t *testing.T) {
	sup := NewSupervisor(time.Minute)
	first := exec.Command("sleep", "5")
	if err := sup.Start("conv-1", first); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	defer func() {
		first.Process.Kill()
		first.Wait()
		sup.Remove("conv-1")
	}()

	second := exec.Command("sleep", "5")
	err := sup.Start("conv-1", second)
	if err == nil {
		second.Process.Kill()
		second.Wait()
		t.Fatal("second start succeeded, want rejection")
	}
	if !errors.Is(err, ErrTurnActive) {
		t.Fatalf("error = %v, want ErrTurnActive", err)
	}
}

func TestSupervisorIsActiveAndRemove(t *testing.T) {
	sup := NewSupervisor(time.Minute)
	if sup.IsActive("conv-1") {
		t.Fatal("active before start")
	}

	cmd := exec.Command("sleep", "5")
	if err := sup.Start("conv-1", cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !sup.IsActive("conv-1") {
		t.Fatal("not active after start")
	}
	if ids := sup.Active(); len(ids) != 1 || ids[0] != "conv-1" {
		t.Fatalf("active list = %v", ids)
	}

	cmd.Process.Kill()
	cmd.Wait()
	sup.Remove("conv-1")
	if sup.IsActive("conv-1") {
		t.Fatal("still active after remove")
	}
}

func TestSupervisorCancelSignalsProcess(t *testing.T) {
	sup := NewSupervisor(time.Minute)
	cmd := exec.Command("sleep", "30")
	if err := sup.Start("conv-1", cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sup.Remove("conv-1")

	if !sup.Cancel("conv-1") {
		t.Fatal("cancel found no entry")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("process exited cleanly, want signal exit")
		}
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		t.Fatal("process did not exit after cancel")
	}
}

func TestSupervisorCancelUnknownConversation(t *testing.T) {
	sup := NewSupervisor(time.Minute)
	if sup.Cancel("nope") {
		t.Fatal("cancel reported an entry for unknown conversation")
	}
}

func TestSupervisorStartFailureLeavesNoEntry(t *testing.T) {
	sup := NewSupervisor(time.Minute)
	cmd := exec.Command("/nonexistent/binary-for-test")
	if err := sup.Start("conv-1", cmd); err == nil {
		t.Fatal("start succeeded for missing binary")
	}
	if sup.IsActive("conv-1") {
		t.Fatal("registry entry left behind after spawn failure")
	}
}

func TestSupervisorTimeoutKillsProcess(t *testing.T) {
	sup := NewSupervisor(100 * time.Millisecond)
	cmd := exec.Command("sleep", "30")
	if err := sup.Start("conv-1", cmd); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sup.Remove("conv-1")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("process exited cleanly, want kill")
		}
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		t.Fatal("timeout did not kill process")
	}
}
