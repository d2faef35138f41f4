// Package validation checks command descriptions and configuration.
//
// Validate reads `validate` struct tags (go-playground/validator) and names
// failing fields by their mapstructure key. Collector gathers hand-written
// checks and can absorb a Validate result, so a caller reports every problem
// in one INVALID_INPUT error with the fields listed under Details["fields"].
//
//	err := validation.New().
//		Merge(validation.Validate(cmd)).
//		Check(cmd.Stdout.Kind() != process.SinkInherit, "stdout", "cannot be inherited here").
//		Err()
package validation
