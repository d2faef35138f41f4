package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kbukum/execkit/errors"
)

// FieldError is one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// Collector gathers field problems so that all of them are reported at once.
// Its methods chain:
//
//	err := validation.New().
//		Required("program", cmd.Program).
//		Check(cmd.Dir == "" || filepath.IsAbs(cmd.Dir), "dir", "must be absolute").
//		Err()
type Collector struct {
	fields []FieldError
}

// New returns an empty Collector.
func New() *Collector { return &Collector{} }

// Add records a problem with field.
func (c *Collector) Add(field, message string) *Collector {
	c.fields = append(c.fields, FieldError{Field: field, Message: message})
	return c
}

// Check records message against field unless ok holds.
func (c *Collector) Check(ok bool, field, message string) *Collector {
	if !ok {
		c.Add(field, message)
	}
	return c
}

// Required rejects empty and all-blank values.
func (c *Collector) Required(field, value string) *Collector {
	return c.Check(strings.TrimSpace(value) != "", field, "is required")
}

// Min rejects values below floor.
func (c *Collector) Min(field string, value, floor int64) *Collector {
	return c.Check(value >= floor, field, fmt.Sprintf("must be at least %d", floor))
}

// OneOf rejects values outside allowed.
func (c *Collector) OneOf(field, value string, allowed []string) *Collector {
	return c.Check(slices.Contains(allowed, value), field, "must be one of: "+strings.Join(allowed, ", "))
}

// Merge absorbs the problems reported by err, typically the result of
// Validate. Field lists are copied as is; any other error is recorded under
// its "field" detail, or with no field.
func (c *Collector) Merge(err error) *Collector {
	if err == nil {
		return c
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return c.Add("", err.Error())
	}
	if fields, ok := appErr.Details["fields"].([]FieldError); ok {
		c.fields = append(c.fields, fields...)
		return c
	}
	field, _ := appErr.Details["field"].(string)
	return c.Add(field, appErr.Message)
}

// Fields returns the recorded problems in the order they were found.
func (c *Collector) Fields() []FieldError { return c.fields }

// HasErrors reports whether anything was recorded.
func (c *Collector) HasErrors() bool { return len(c.fields) > 0 }

// Err is nil when nothing was recorded, otherwise an INVALID_INPUT error
// listing every field in its message and under Details["fields"].
func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	parts := make([]string, len(c.fields))
	for i, f := range c.fields {
		parts[i] = f.String()
	}
	return errors.Validation(strings.Join(parts, "; ")).WithDetail("fields", c.fields)
}
