package logger

import (
	"sync"
	"sync/atomic"
)

var (
	global atomic.Pointer[Logger]

	namedMu sync.RWMutex
	named   = map[string]*Logger{}
)

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(l *Logger) { global.Store(l) }

// GetGlobalLogger returns the process-wide logger. Until one is set it is an
// info-level console logger on stderr.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	cfg := Config{}
	cfg.ApplyDefaults()
	global.CompareAndSwap(nil, New(&cfg, "default"))
	return global.Load()
}

// Register makes l available under name through Get.
func Register(name string, l *Logger) {
	namedMu.Lock()
	named[name] = l
	namedMu.Unlock()
}

// Get returns the logger registered under name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	namedMu.RLock()
	l := named[name]
	namedMu.RUnlock()
	if l != nil {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

func Debug(msg string, fields ...map[string]any) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]any)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]any)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]any) { GetGlobalLogger().Error(msg, fields...) }
