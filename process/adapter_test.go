package process_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/observability"
	"github.com/kbukum/execkit/process"
	"github.com/kbukum/execkit/provider"
)

func TestAdapterExecute(t *testing.T) {
	a, err := process.NewAdapter(process.Config{Name: "shell"})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	defer a.Close(context.Background())

	if a.Name() != "shell" || !a.IsAvailable(context.Background()) {
		t.Fatalf("unexpected adapter state name=%q", a.Name())
	}
	res, err := a.Execute(context.Background(), process.Command{Program: "echo", Args: []string{"hi"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "hi\n" {
		t.Fatalf("unexpected output %q", res.Stdout)
	}
}

func TestAdapterLinesProvider(t *testing.T) {
	a, err := process.NewAdapter(process.Config{})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	defer a.Close(context.Background())

	var stream provider.Stream[process.Command, process.Line] = a.Lines()
	if stream.Name() != "process.lines" {
		t.Fatalf("unexpected name %q", stream.Name())
	}
	it, err := stream.Execute(context.Background(), process.Command{Program: "printf", Args: []string{"x\ny\n"}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	defer it.Close()
	var got []string
	for {
		line, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, line.Text)
	}
	if strings.Join(got, ",") != "x,y" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestAdapterStreamSpawnFailure(t *testing.T) {
	a, err := process.NewAdapter(process.Config{})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	defer a.Close(context.Background())

	it, err := a.Stream(context.Background(), process.Command{Program: "definitely-not-a-real-program-xyz"})
	if it != nil {
		t.Fatal("expected a nil iterator on failure")
	}
	if !errors.IsCode(err, errors.ErrCodeSpawnFailed) {
		t.Fatalf("expected SPAWN_FAILED, got %v", err)
	}
}

func TestAdapterCloseAndHealth(t *testing.T) {
	a, err := process.NewAdapter(process.Config{Name: "runner"})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	h := a.CheckHealth(context.Background())
	if h.Status != observability.HealthStatusUp || h.Details["live"] != "0" {
		t.Fatalf("unexpected health %+v", h)
	}

	if err := provider.CloseIfCloseable(context.Background(), a); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.IsAvailable(context.Background()) {
		t.Fatal("expected a closed adapter to be unavailable")
	}
	if h := a.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Fatalf("expected down after close, got %+v", h)
	}
}

func TestProgramCheck(t *testing.T) {
	sh := observability.NewServiceHealth("execkit", "test").Check(context.Background(),
		process.ProgramCheck("sh"),
		process.ProgramCheck("definitely-not-a-real-program-xyz"),
	)
	if sh.IsUp() || sh.Status != observability.HealthStatusDown {
		t.Fatalf("expected down with a missing program, got %s", sh.Status)
	}
	if len(sh.Components) != 2 || sh.Components[0].Status != observability.HealthStatusUp {
		t.Fatalf("unexpected components %+v", sh.Components)
	}
	if sh.Components[0].Details["path"] == "" {
		t.Error("expected the resolved path")
	}
}

func TestAdapterWithMiddleware(t *testing.T) {
	a, err := process.NewAdapter(process.Config{Name: "wrapped"})
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}
	defer a.Close(context.Background())

	wrapped := provider.Chain(
		provider.WithLogging[process.Command, *process.Result](logger.Nop()),
		provider.WithTracing[process.Command, *process.Result]("execkit"),
	)(a)
	if wrapped.Name() != "wrapped" {
		t.Fatalf("unexpected name %q", wrapped.Name())
	}
	_, err = wrapped.Execute(context.Background(), process.Command{Program: "false"})
	if !errors.IsCode(err, errors.ErrCodeNonZeroExit) {
		t.Fatalf("expected NON_ZERO_EXIT through middleware, got %v", err)
	}
}

type wordCount struct {
	Text string
}

func TestSubprocessProvider(t *testing.T) {
	p := process.NewSubprocessProvider("wc", nil,
		func(in wordCount) process.Command {
			return process.Command{
				Program: "wc",
				Args:    []string{"-w"},
				Stdin:   process.FromReader(strings.NewReader(in.Text)),
			}
		},
		func(res *process.Result) (string, error) {
			return strings.TrimSpace(string(res.Stdout)), nil
		},
	).WithAvailabilityCheck(process.ProgramAvailable("wc"))

	var _ provider.RequestResponse[wordCount, string] = p
	if p.Name() != "wc" || !p.IsAvailable(context.Background()) {
		t.Fatalf("unexpected provider state")
	}
	got, err := p.Execute(context.Background(), wordCount{Text: "one two three"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
}

func TestSubprocessProviderUnavailable(t *testing.T) {
	p := process.NewSubprocessProvider("ghost", nil,
		func(string) process.Command { return process.Command{Program: "definitely-not-a-real-program-xyz"} },
		func(*process.Result) (string, error) { return "", nil },
	).WithAvailabilityCheck(process.ProgramAvailable("definitely-not-a-real-program-xyz"))
	if p.IsAvailable(context.Background()) {
		t.Fatal("expected unavailable")
	}
	if _, err := p.Execute(context.Background(), "x"); !errors.IsCode(err, errors.ErrCodeSpawnFailed) {
		t.Fatalf("expected SPAWN_FAILED, got %v", err)
	}
}

func TestSubprocessProviderDefaultsAvailable(t *testing.T) {
	p := process.NewSubprocessProvider("echo", nil,
		func(s string) process.Command { return process.Command{Program: "echo", Args: []string{s}} },
		func(res *process.Result) (string, error) { return res.Text() },
	)
	if !p.IsAvailable(context.Background()) {
		t.Fatal("expected a provider without a check to be available")
	}
	got, err := p.Execute(context.Background(), "hi")
	if err != nil || got != "hi\n" {
		t.Fatalf("unexpected %q, %v", got, err)
	}
}
