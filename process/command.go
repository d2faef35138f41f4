package process

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/validation"
)

// Command configures a subprocess to execute.
type Command struct {
	// Program is the executable path or name (resolved via PATH).
	Program string `mapstructure:"program" validate:"required,nonul"`
	// Args are the command-line arguments.
	Args []string `mapstructure:"args" validate:"dive,nonul"`
	// Dir is the working directory. If empty, uses the current directory.
	Dir string `mapstructure:"dir" validate:"omitempty,dir"`
	// Env is additional environment variables (key=value). Merged with os.Environ.
	Env []string `mapstructure:"env" validate:"dive,contains=="`
	// Stdin, Stdout and Stderr route the standard streams.
	Stdin  Sink `mapstructure:"-"`
	Stdout Sink `mapstructure:"-"`
	Stderr Sink `mapstructure:"-"`
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Zero uses the executor's configured grace period.
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`
}

// String renders the command roughly as a shell would show it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Validate checks field constraints and that every sink fits its stream.
// All problems are reported together.
func (c Command) Validate() error {
	v := validation.New().Merge(validation.Validate(c))
	for _, s := range [...]struct{ field, reason string }{
		{"stdin", c.Stdin.checkInput()},
		{"stdout", c.Stdout.checkOutput()},
		{"stderr", c.Stderr.checkOutput()},
	} {
		v.Check(s.reason == "", s.field, s.reason)
	}
	return v.Err()
}

// validateStages checks the shape of a pipeline before anything is spawned.
func validateStages(stages []Command) error {
	if len(stages) == 0 {
		return errors.InvalidInput("stages", "at least one stage is required")
	}
	last := len(stages) - 1
	for i, c := range stages {
		if err := c.Validate(); err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				return appErr.WithDetail("stage", i)
			}
			return err
		}
		if i > 0 && !c.Stdin.IsDefault() {
			return errors.InvalidInput(fmt.Sprintf("stages[%d].stdin", i),
				"stdin of a later stage is supplied by the previous stage").WithDetail("stage", i)
		}
		if i < last {
			if k := c.Stdout.Kind(); k != SinkDefault && k != SinkPipe {
				return errors.InvalidInput(fmt.Sprintf("stages[%d].stdout", i),
					fmt.Sprintf("stdout of an intermediate stage feeds the next stage, got %s", c.Stdout)).
					WithDetail("stage", i)
			}
		}
	}
	return nil
}

// mergeEnv merges additional env vars with the current environment.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil // inherit parent env
	}
	env := os.Environ()
	return append(env, extra...)
}
