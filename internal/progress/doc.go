// Package progress records pipeline lifecycle events. The recorder appends
// each event to the job store, which owns sequencing, and fans the stored
// event out to pluggable sinks such as structured logs or Prometheus
// metrics.
package progress
