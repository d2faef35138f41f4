package process_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/process"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestSharedFileStdoutAndStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.log")
	sf, err := process.OpenFile(context.Background(), path, process.FileCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sf.Refs() != 1 {
		t.Fatalf("expected the owner reference only, got %d", sf.Refs())
	}

	_, err = process.Run(context.Background(), process.Command{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err >&2; echo out2"},
		Stdout:  process.ToFile(sf),
		Stderr:  process.ToFile(sf),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sf.Refs() != 1 {
		t.Fatalf("expected spawn to release its references, got %d", sf.Refs())
	}
	if err := sf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sf.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if sf.Refs() != 0 {
		t.Fatalf("expected no references after close, got %d", sf.Refs())
	}

	if got := readFile(t, path); got != "out\nerr\nout2\n" {
		t.Fatalf("expected writes in order through one cursor, got %q", got)
	}
}

func TestSharedFileMixedWriteSizes(t *testing.T) {
	const script = `i=0
while [ "$i" -lt "$3" ]; do
	head -c "$1" /dev/zero | tr '\0' o
	head -c "$2" /dev/zero | tr '\0' e >&2
	i=$((i+1))
done`
	tests := []struct {
		name   string
		stdout int
		stderr int
		rounds int
	}{
		{"small both", 3, 3, 4},
		{"large stdout tiny stderr", 64 << 10, 1, 8},
		{"tiny stdout large stderr", 1, 64 << 10, 8},
		{"large both", 200_000, 70_000, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mixed.log")
			sf, err := process.OpenFile(context.Background(), path, process.FileCreate)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer sf.Close()

			_, err = process.Run(context.Background(), process.Command{
				Program: "sh",
				Args:    []string{"-c", script, "sh", strconv.Itoa(tc.stdout), strconv.Itoa(tc.stderr), strconv.Itoa(tc.rounds)},
				Stdout:  process.ToFile(sf),
				Stderr:  process.ToFile(sf),
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}

			got := readFile(t, path)
			if want := (tc.stdout + tc.stderr) * tc.rounds; len(got) != want {
				t.Fatalf("expected %d bytes, got %d", want, len(got))
			}
			round := strings.Repeat("o", tc.stdout) + strings.Repeat("e", tc.stderr)
			if got != strings.Repeat(round, tc.rounds) {
				t.Fatal("expected every write to land after the previous one")
			}
		})
	}
}

func TestSharedFileAcrossCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.log")
	sf, err := process.OpenFile(context.Background(), path, process.FileCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sf.Close()

	for _, word := range []string{"first", "second"} {
		if _, err := process.Run(context.Background(), process.Command{
			Program: "echo",
			Args:    []string{word},
			Stdout:  process.ToFile(sf),
		}); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if got := readFile(t, path); got != "first\nsecond\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestFileSinkSamePathShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := process.Run(context.Background(), process.Command{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
		Stdout:  process.File(path, process.FileAppend),
		Stderr:  process.File(path, process.FileAppend),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readFile(t, path); got != "start\nout\nerr\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestFileSinkCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("old content that is long\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := process.Run(context.Background(), process.Command{
		Program: "echo",
		Args:    []string{"new"},
		Stdout:  process.File(path, process.FileCreate),
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readFile(t, path); got != "new\n" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestFromFileStdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte("b\na\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sf, err := process.OpenFile(context.Background(), path, process.FileRead)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sf.Close()

	res, err := process.Run(context.Background(), process.Command{Program: "sort", Stdin: process.FromFile(sf)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(res.Stdout) != "a\nb\n" {
		t.Fatalf("unexpected output %q", res.Stdout)
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := process.OpenFile(context.Background(), filepath.Join(t.TempDir(), "nope", "x"), process.FileRead)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeIOFailed {
		t.Fatalf("expected IO_FAILED, got %v", err)
	}
	if appErr.Details["path"] == nil {
		t.Fatal("expected a path detail")
	}
}

func TestSpawnOnClosedSharedFile(t *testing.T) {
	sf, err := process.OpenFile(context.Background(), filepath.Join(t.TempDir(), "closed.log"), process.FileCreate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sf.Close()
	_, err = process.Spawn(context.Background(), process.Command{Program: "true", Stdout: process.ToFile(sf)})
	if !errors.IsCode(err, errors.ErrCodeIOFailed) {
		t.Fatalf("expected IO_FAILED for a closed file, got %v", err)
	}
}

func TestOpenFileWithLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.log")
	first, err := process.OpenFile(context.Background(), path, process.FileAppend, process.WithLock())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := process.OpenFile(ctx, path, process.FileAppend, process.WithLock()); !errors.IsCode(err, errors.ErrCodeIOFailed) {
		t.Fatalf("expected IO_FAILED while the lock is held, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := process.OpenFile(context.Background(), path, process.FileAppend, process.WithLock())
	if err != nil {
		t.Fatalf("expected the lock to be free after close: %v", err)
	}
	second.Close()
}

func TestFileModeString(t *testing.T) {
	for mode, want := range map[process.FileMode]string{
		process.FileCreate: "create",
		process.FileAppend: "append",
		process.FileRead:   "read",
	} {
		if mode.String() != want {
			t.Errorf("expected %q, got %q", want, mode.String())
		}
	}
}

func TestSinkString(t *testing.T) {
	tests := []struct {
		sink process.Sink
		want string
	}{
		{process.Sink{}, "default"},
		{process.Discard(), "discard"},
		{process.Inherit(), "inherit"},
		{process.Pipe(), "pipe"},
		{process.File("/tmp/a.log", process.FileAppend), "file(/tmp/a.log, append)"},
	}
	for _, tc := range tests {
		if got := tc.sink.String(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
	if !(process.Sink{}).IsDefault() || process.Pipe().Kind() != process.SinkPipe {
		t.Error("unexpected sink kind")
	}
}
