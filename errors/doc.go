// Package errors provides the structured error type shared by execkit packages.
// Every failure carries a machine-readable ErrorCode so callers can tell a
// program that could not be started apart from a broken pipe or undecodable
// output without matching on message text.
package errors
