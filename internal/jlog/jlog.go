// Package jlog provides the evaluator's structured tracing, built on
// k8s.io/klog/v2 the way kube-state-metrics uses it: leveled, formatted
// Infof calls gated by klog's verbosity, never on the error-handling path.
package jlog

import "k8s.io/klog/v2"

// Level mirrors klog's verbosity levels used to gate tracing detail.
type Level = klog.Level

const (
	// LevelImports traces import resolution and cache hits.
	LevelImports Level = 2
	// LevelThunks traces thunk force events.
	LevelThunks Level = 4
	// LevelObjects traces object-merge hiddenness decisions.
	LevelObjects Level = 4
)

// Importf logs an import-resolution event at LevelImports.
func Importf(format string, args ...any) {
	klog.V(LevelImports).Infof(format, args...)
}

// Thunkf logs a thunk force event at LevelThunks.
func Thunkf(format string, args ...any) {
	klog.V(LevelThunks).Infof(format, args...)
}

// Objectf logs an object-merge decision at LevelObjects.
func Objectf(format string, args ...any) {
	klog.V(LevelObjects).Infof(format, args...)
}
