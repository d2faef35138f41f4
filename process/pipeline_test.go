package process_test

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/process"
)

func TestBuildValidation(t *testing.T) {
	path := t.TempDir() + "/out"
	tests := []struct {
		name   string
		stages []process.Command
		stage  any
	}{
		{"no stages", nil, nil},
		{
			"later stage stdin",
			[]process.Command{
				{Program: "true"},
				{Program: "cat", Stdin: process.FromReader(strings.NewReader("x"))},
			},
			1,
		},
		{
			"intermediate stdout file",
			[]process.Command{
				{Program: "echo", Stdout: process.File(path, process.FileCreate)},
				{Program: "cat"},
			},
			0,
		},
		{
			"intermediate stdout discard",
			[]process.Command{
				{Program: "echo"},
				{Program: "cat", Stdout: process.Discard()},
				{Program: "cat"},
			},
			1,
		},
		{
			"invalid later command",
			[]process.Command{
				{Program: "echo"},
				{Program: ""},
			},
			1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := process.Build(context.Background(), tc.stages...)
			if p != nil {
				t.Fatal("expected no pipeline")
			}
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Code != errors.ErrCodeInvalidInput {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if tc.stage != nil && appErr.Details["stage"] != tc.stage {
				t.Fatalf("expected stage detail %v, got %v", tc.stage, appErr.Details["stage"])
			}
		})
	}
}

func TestBuildFailureUnwinds(t *testing.T) {
	e, err := process.NewExecutor(process.Config{})
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	defer e.Close(context.Background())

	_, err = e.Build(context.Background(),
		process.Command{Program: "sleep", Args: []string{"30"}},
		process.Command{Program: "cat"},
		process.Command{Program: "definitely-not-a-real-program-xyz"},
	)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeSpawnFailed {
		t.Fatalf("expected SPAWN_FAILED, got %v", err)
	}
	if appErr.Details["stage"] != 2 {
		t.Fatalf("expected stage 2, got %v", appErr.Details["stage"])
	}
	if appErr.Details["program"] != "definitely-not-a-real-program-xyz" {
		t.Fatalf("expected program detail, got %v", appErr.Details["program"])
	}
	if n := e.Registry().Len(); n != 0 {
		t.Fatalf("expected earlier stages to be reaped, %d still live", n)
	}
}

func TestPipelineAccessors(t *testing.T) {
	p, err := process.Build(context.Background(),
		process.Command{Program: "echo", Args: []string{"x"}},
		process.Command{Program: "cat", Stdout: process.Discard()},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.ID() == "" || p.Len() != 2 {
		t.Fatalf("unexpected pipeline id=%q len=%d", p.ID(), p.Len())
	}
	stages := p.Stages()
	if stages[0].Program() != "echo" || p.Terminal().Program() != "cat" || p.Stage(1).Stage() != 1 {
		t.Fatalf("unexpected stages %v", stages)
	}
	if p.Stage(0).Stdout() != nil {
		t.Fatal("an intermediate stdout belongs to the chain, not the caller")
	}
	if p.Stage(1).Stdin() != nil {
		t.Fatal("a later stdin belongs to the chain, not the caller")
	}

	statuses, err := p.Wait()
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(statuses) != 2 || !statuses[0].Success() || !statuses[1].Success() {
		t.Fatalf("unexpected statuses %v", statuses)
	}
	if _, err := p.Wait(); !stderrors.Is(err, process.ErrAlreadyWaited) {
		t.Fatalf("expected ErrAlreadyWaited, got %v", err)
	}
}

func TestPipelineIntermediateFailure(t *testing.T) {
	result, err := process.RunPipeline(context.Background(),
		process.Command{Program: "sh", Args: []string{"-c", "echo partial; exit 3"}},
		process.Command{Program: "cat"},
	)
	if err != nil {
		t.Fatalf("an intermediate failure does not fail the pipeline: %v", err)
	}
	if result.Classification != process.Success {
		t.Fatalf("expected success from the terminal stage, got %s", result.Classification)
	}
	if result.StageStatuses[0].Code != 3 {
		t.Fatalf("expected stage 0 exit 3, got %s", result.StageStatuses[0])
	}
	if string(result.Stdout) != "partial\n" {
		t.Fatalf("unexpected output %q", result.Stdout)
	}
}

func TestPipelineStageStderr(t *testing.T) {
	p, err := process.Build(context.Background(),
		process.Command{Program: "sh", Args: []string{"-c", "echo first >&2; echo data"}, Stderr: process.Pipe()},
		process.Command{Program: "sh", Args: []string{"-c", "cat; echo second >&2"}, Stdout: process.Pipe(), Stderr: process.Pipe()},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	result, err := process.Collect(context.Background(), p)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if string(result.StageStderr[0]) != "first\n" || string(result.StageStderr[1]) != "second\n" {
		t.Fatalf("unexpected stage stderr %v", result.StageStderr)
	}
	if string(result.Stderr) != "second\n" {
		t.Fatalf("expected terminal stderr, got %q", result.Stderr)
	}
	if string(result.Stdout) != "data\n" {
		t.Fatalf("unexpected stdout %q", result.Stdout)
	}
}

// TestPipelineMatchesReference runs the same transformation through a
// process pipeline and in memory and compares the outputs.
func TestPipelineMatchesReference(t *testing.T) {
	input := "pear\napple\nfig\napple\nbanana\nfig\nkiwi\n"

	result, err := process.RunPipeline(context.Background(),
		process.Command{Program: "tr", Args: []string{"a-z", "A-Z"}, Stdin: process.FromReader(strings.NewReader(input))},
		process.Command{Program: "sort"},
		process.Command{Program: "uniq"},
		process.Command{Program: "grep", Args: []string{"-v", "KIWI"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := result.OutputLines()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	seen := map[string]bool{}
	var want []string
	for _, l := range strings.Split(strings.TrimSuffix(input, "\n"), "\n") {
		u := strings.ToUpper(l)
		if u == "KIWI" || seen[u] {
			continue
		}
		seen[u] = true
		want = append(want, u)
	}
	sort.Strings(want)

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("pipeline %v != reference %v", got, want)
	}
}

func TestPipelineAbandon(t *testing.T) {
	p, err := process.Build(context.Background(),
		process.Command{Program: "sleep", Args: []string{"30"}},
		process.Command{Program: "cat", Stdout: process.Pipe()},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p.Abandon()
	for _, h := range p.Stages() {
		waitExited(t, h, 5*time.Second)
	}
}
