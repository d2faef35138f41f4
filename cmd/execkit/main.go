// Command execkit runs a pipeline of programs and reports its outcome.
//
//	execkit [flags] -- du -ah . '|' sort -hr '|' head -n 10
//	execkit --match '^usb' -i --take 5 -- dmesg
//	execkit --out build.log -- make all
//
// A standalone "|" argument separates stages. The exit code mirrors the
// terminal stage: its own code on a non-zero exit, 128+signal when it was
// killed, 127 when a stage could not be spawned.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
