// Package sinks contains the built-in progress sinks: structured logging and
// Prometheus metrics.
package sinks
