package process_test

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/process"
)

// waitExited fails the test if h is not reaped within d.
func waitExited(t *testing.T, h *process.Handle, d time.Duration) {
	t.Helper()
	select {
	case <-h.Exited():
	case <-time.After(d):
		t.Fatalf("process %d not reaped within %v", h.PID(), d)
	}
}

func TestSpawnAndWait(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{Program: "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("expected a pid, got %d", h.PID())
	}
	if h.ID() == "" || h.Program() != "true" || h.Stage() != 0 {
		t.Fatalf("unexpected handle identity: id=%q program=%q stage=%d", h.ID(), h.Program(), h.Stage())
	}
	st, err := h.Wait()
	if err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if !st.Success() || st.Classify() != process.Success {
		t.Fatalf("expected success, got %s", st)
	}
}

func TestSpawnSecondWait(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{Program: "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	_, err = h.Wait()
	if !stderrors.Is(err, process.ErrAlreadyWaited) {
		t.Fatalf("expected ErrAlreadyWaited, got %v", err)
	}
	if !errors.IsCode(err, errors.ErrCodeInternal) {
		t.Fatalf("expected INTERNAL code, got %v", err)
	}
}

func TestSpawnPipes(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "tr",
		Args:    []string{"a-z", "A-Z"},
		Stdin:   process.Pipe(),
		Stdout:  process.Pipe(),
		Stderr:  process.Discard(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdin := h.Stdin()
	stdout := h.Stdout()
	if stdin == nil || stdout == nil {
		t.Fatal("expected both pipe ends")
	}
	if h.Stdin() != nil || h.Stdout() != nil {
		t.Fatal("expected pipe ends to be claimable once")
	}
	if h.Stderr() != nil {
		t.Fatal("expected no stderr end for a discarded stream")
	}

	if _, err := io.WriteString(stdin, "shout\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	stdin.Close()
	out, err := io.ReadAll(stdout)
	stdout.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out) != "SHOUT\n" {
		t.Fatalf("expected SHOUT, got %q", out)
	}
	if st, err := h.Wait(); err != nil || !st.Success() {
		t.Fatalf("expected success, got %s, %v", st, err)
	}
}

func TestWaitDrainsUnclaimedPipes(t *testing.T) {
	// 1 MiB is far more than a pipe buffer holds; the child would block
	// forever if nobody read its stdout.
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "sh",
		Args:    []string{"-c", "head -c 1048576 /dev/zero; head -c 1048576 /dev/zero >&2"},
		Stdout:  process.Pipe(),
		Stderr:  process.Pipe(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		st, err := h.Wait()
		if err != nil || !st.Success() {
			t.Errorf("expected success, got %s, %v", st, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		h.Abandon()
		t.Fatal("Wait stalled on a full pipe")
	}
}

func TestWaitClosesUnclaimedStdin(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "cat",
		Stdin:   process.Pipe(),
		Stdout:  process.Discard(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// cat only exits once it sees EOF on stdin.
	st, err := h.Wait()
	if err != nil || !st.Success() {
		t.Fatalf("expected success, got %s, %v", st, err)
	}
}

func TestSignalKill(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "sleep",
		Args:    []string{"30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("signal: %v", err)
	}
	st, err := h.Wait()
	if err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if !st.Signaled || st.Signal != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL, got %s", st)
	}
	if st.Classify() != process.SignalTerminated {
		t.Fatalf("expected signal_terminated, got %s", st.Classify())
	}
	if err := h.Signal(syscall.SIGTERM); !stderrors.Is(err, os.ErrProcessDone) {
		t.Fatalf("expected os.ErrProcessDone after exit, got %v", err)
	}
}

func TestAbandonIdempotent(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "sleep",
		Args:    []string{"30"},
		Stdout:  process.Pipe(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Abandon()
	h.Abandon()
	waitExited(t, h, 5*time.Second)
	h.Abandon()

	st, err := h.Wait()
	if err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if !st.Signaled || st.Signal != syscall.SIGTERM {
		t.Fatalf("expected SIGTERM, got %s", st)
	}
}

func TestAbandonEscalatesToKill(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program:     "sh",
		Args:        []string{"-c", `trap "" TERM; echo ready; sleep 30`},
		Stdout:      process.Pipe(),
		GracePeriod: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stdout := h.Stdout()
	defer stdout.Close()
	line, err := bufio.NewReader(stdout).ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ready" {
		t.Fatalf("expected ready handshake, got %q, %v", line, err)
	}

	h.Abandon()
	waitExited(t, h, 5*time.Second)
	st, _ := h.Wait()
	if !st.Signaled || st.Signal != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL after the grace period, got %s", st)
	}
}

func TestAbandonWhileWaiting(t *testing.T) {
	h, err := process.Spawn(context.Background(), process.Command{
		Program: "sleep",
		Args:    []string{"30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := make(chan process.Status, 1)
	go func() {
		st, _ := h.Wait()
		result <- st
	}()
	time.Sleep(50 * time.Millisecond)
	h.Abandon()
	select {
	case st := <-result:
		if st.Classify() != process.SignalTerminated {
			t.Fatalf("expected signal_terminated, got %s", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Abandon")
	}
}

func TestSpawnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := process.Spawn(ctx, process.Command{
		Program:     "sleep",
		Args:        []string{"30"},
		GracePeriod: time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	waitExited(t, h, 5*time.Second)
	st, err := h.Wait()
	if err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	if !st.Signaled || st.Signal != syscall.SIGTERM {
		t.Fatalf("expected SIGTERM on cancel, got %s", st)
	}
}

func TestSpawnNotFound(t *testing.T) {
	_, err := process.Spawn(context.Background(), process.Command{Program: "definitely-not-a-real-program-xyz"})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeSpawnFailed {
		t.Fatalf("expected SPAWN_FAILED, got %v", err)
	}
}

func TestSpawnStartFailureReleasesFile(t *testing.T) {
	dir := t.TempDir()
	// executable bit set but not a valid executable: LookPath passes, Start fails
	bogus := dir + "/bogus"
	if err := os.WriteFile(bogus, []byte{0x00, 0x01, 0x02}, 0o755); err != nil {
		t.Fatal(err)
	}
	sf, err := process.OpenFile(context.Background(), dir+"/out.log", process.FileCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sf.Close()

	_, err = process.Spawn(context.Background(), process.Command{
		Program: bogus,
		Stdout:  process.ToFile(sf),
		Stderr:  process.Pipe(),
	})
	if !errors.IsCode(err, errors.ErrCodeSpawnFailed) {
		t.Fatalf("expected SPAWN_FAILED, got %v", err)
	}
	if sf.Refs() != 1 {
		t.Fatalf("expected only the owner reference to remain, got %d", sf.Refs())
	}
}

func TestStatusString(t *testing.T) {
	if got := (process.Status{Code: 3}).String(); got != "exit status 3" {
		t.Errorf("unexpected %q", got)
	}
	st := process.Status{Code: -1, Signal: syscall.SIGKILL, Signaled: true}
	if got := st.String(); got != "signal: killed" {
		t.Errorf("unexpected %q", got)
	}
	if st.Success() {
		t.Error("a signaled status is not a success")
	}
}
