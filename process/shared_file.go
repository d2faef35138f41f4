package process

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/kbukum/execkit/errors"
)

// FileMode selects how a SharedFile is opened.
type FileMode int

const (
	// FileCreate creates the file or truncates an existing one.
	FileCreate FileMode = iota
	// FileAppend creates the file if needed and appends to it.
	FileAppend
	// FileRead opens an existing file for reading.
	FileRead
)

func (m FileMode) String() string {
	switch m {
	case FileCreate:
		return "create"
	case FileAppend:
		return "append"
	case FileRead:
		return "read"
	default:
		return fmt.Sprintf("FileMode(%d)", int(m))
	}
}

func (m FileMode) flags() int {
	switch m {
	case FileAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case FileRead:
		return os.O_RDONLY
	default:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
}

func (m FileMode) writable() bool { return m == FileCreate || m == FileAppend }

// lockRetryInterval is the polling interval while waiting for a WithLock lock.
const lockRetryInterval = 50 * time.Millisecond

// FileOption configures OpenFile.
type FileOption func(*fileOptions)

type fileOptions struct {
	lock bool
	perm os.FileMode
}

// WithLock holds an exclusive advisory lock on "<path>.lock" for the lifetime
// of the SharedFile, so separate orchestrators writing one log take turns.
func WithLock() FileOption {
	return func(o *fileOptions) { o.lock = true }
}

// WithPerm sets the permission bits used when the file is created.
func WithPerm(perm os.FileMode) FileOption {
	return func(o *fileOptions) { o.perm = perm }
}

// SharedFile is one open file that any number of sinks, across any number of
// commands, may attach to. Every attached stream uses the same open file
// description, so writes through it share one cursor.
//
// The caller holds one reference from OpenFile and drops it with Close. Spawn
// holds one more per attached stream until the child has started. The file is
// closed when the last reference goes away.
type SharedFile struct {
	path string
	mode FileMode

	mu          sync.Mutex
	f           *os.File
	lock        *flock.Flock
	refs        int
	ownerClosed bool
	closeErr    error
}

// OpenFile opens path in mode. ctx bounds the wait for WithLock.
func OpenFile(ctx context.Context, path string, mode FileMode, opts ...FileOption) (*SharedFile, error) {
	o := fileOptions{perm: 0o644}
	for _, opt := range opts {
		opt(&o)
	}

	sf := &SharedFile{path: path, mode: mode, refs: 1}
	if o.lock {
		fl := flock.New(path + ".lock")
		locked, err := fl.TryLockContext(ctx, lockRetryInterval)
		if err == nil && !locked {
			err = fmt.Errorf("lock not acquired")
		}
		if err != nil {
			return nil, errors.IOFailed("file", err).WithDetail("path", path)
		}
		sf.lock = fl
	}

	f, err := os.OpenFile(path, mode.flags(), o.perm)
	if err != nil {
		if sf.lock != nil {
			_ = sf.lock.Close()
		}
		return nil, errors.IOFailed("file", err).WithDetail("path", path)
	}
	sf.f = f
	return sf, nil
}

// Path returns the path the file was opened from.
func (sf *SharedFile) Path() string { return sf.path }

// Mode returns the mode the file was opened with.
func (sf *SharedFile) Mode() FileMode { return sf.mode }

// Refs returns the number of live references, including the caller's.
func (sf *SharedFile) Refs() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.refs
}

// Close drops the caller's reference. The underlying file stays open while
// a spawn still holds it. Calling Close twice is a no-op.
func (sf *SharedFile) Close() error {
	sf.mu.Lock()
	if sf.ownerClosed {
		sf.mu.Unlock()
		return nil
	}
	sf.ownerClosed = true
	sf.mu.Unlock()
	return sf.release()
}

// acquire adds a reference and returns the file to hand to a child.
func (sf *SharedFile) acquire() (*os.File, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.refs == 0 || sf.f == nil {
		return nil, errors.IOFailed("file", os.ErrClosed).WithDetail("path", sf.path)
	}
	sf.refs++
	return sf.f, nil
}

// release drops one reference, closing the file on the last one.
func (sf *SharedFile) release() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.refs == 0 {
		return sf.closeErr
	}
	sf.refs--
	if sf.refs > 0 {
		return nil
	}
	if err := sf.f.Close(); err != nil {
		sf.closeErr = errors.IOFailed("file", err).WithDetail("path", sf.path)
	}
	sf.f = nil
	if sf.lock != nil {
		if err := sf.lock.Close(); err != nil && sf.closeErr == nil {
			sf.closeErr = errors.IOFailed("file", err).WithDetail("path", sf.lock.Path())
		}
		sf.lock = nil
	}
	return sf.closeErr
}
