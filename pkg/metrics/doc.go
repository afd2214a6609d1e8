/*
Package metrics provides Prometheus metrics collection and exposition for lockc.

The metrics package defines and registers all lockc metrics using the Prometheus
client library, providing observability into container/process counts, LSM hook
decisions, runtime interception, and control-plane command latency. Metrics are
exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Tables: containers, processes (polled)     │          │
	│  │  Hooks: LSM decisions (allow/deny)          │          │
	│  │  Runtime: intercepted runc/shim exec calls  │          │
	│  │  Control plane: queue depth, command time   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Collector:
  - Polls pkg/tables.Tables every 15s (pkg/metrics/collector.go)
  - Populates ContainersTotal and ProcessesTotal, since those gauges
    can't be updated inline from the kernel-facing hook path
  - Start/Stop lifecycle, same ticker/stopCh shape as the runtime watcher

Counter/Histogram Metrics:
  - HookDecisionsTotal, RuntimeInterceptsTotal, PolicyResolutionDuration,
    ResolutionFallbacksTotal, ControlPlaneQueueDepth and
    ControlPlaneCommandDuration are registered and exported on /metrics,
    but no lockc package updates them, so they stay at zero
  - The kernel hooks keep no decision counters of their own

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

lockc_containers_total{policy_level}:
  - Type: Gauge
  - Description: Total registered containers by policy level
  - Labels: policy_level (restricted|baseline|privileged)
  - Example: lockc_containers_total{policy_level="restricted"} 12

lockc_processes_total:
  - Type: Gauge
  - Description: Total tracked processes across all containers
  - Example: lockc_processes_total 48

lockc_hook_decisions_total{hook, decision}:
  - Type: Counter
  - Description: LSM hook decisions by hook and outcome
  - Labels: hook (syslog|sb_mount|task_fix_setuid|file_open), decision (allow|deny)

lockc_runtime_intercepts_total{action}:
  - Type: Counter
  - Description: Runtime invocations intercepted by the fanotify watcher
  - Labels: action (create|delete|other)

lockc_policy_resolution_duration_seconds:
  - Type: Histogram
  - Description: Time to resolve a newly created container's policy level
  - Buckets: Default Prometheus buckets

lockc_policy_resolution_fallbacks_total:
  - Type: Counter
  - Description: Policy resolutions that fell back to baseline after a
    resolver error

lockc_control_plane_queue_depth:
  - Type: Gauge
  - Description: Commands currently queued for the control-plane maintainer

lockc_control_plane_command_duration_seconds{op}:
  - Type: Histogram
  - Description: Time to apply a control-plane command, by op
    (add_container|delete_container|add_process)

# Usage

Updating Gauge Metrics:

	import "github.com/lockc-project/lockc/pkg/metrics"

	metrics.ContainersTotal.WithLabelValues("restricted").Set(5)
	metrics.ProcessesTotal.Set(48)

Updating Counter Metrics:

	metrics.HookDecisionsTotal.WithLabelValues("sb_mount", "deny").Inc()
	metrics.RuntimeInterceptsTotal.WithLabelValues("create").Inc()

Recording Histogram Observations:

	timer := metrics.NewTimer()
	level := bundleResolver.Resolve(ctx, bundle)
	timer.ObserveDuration(metrics.PolicyResolutionDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	err := maintainer.Submit(ctx, cmd)
	timer.ObserveDurationVec(metrics.ControlPlaneCommandDuration, string(cmd.Op))

Complete Example:

	package main

	import (
		"net/http"
		"github.com/lockc-project/lockc/pkg/metrics"
	)

	func main() {
		collector := metrics.NewCollector(tbl)
		collector.Start()
		defer collector.Stop()

		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.ListenAndServe(":9090", nil)
	}

# Integration Points

This package integrates with:

  - pkg/tables: Collector polls container/process counts
  - cmd/lockcd: registers loader/watcher/controlplane health and serves
    /metrics, /health, /ready and /live
  - Prometheus: Scrapes /metrics endpoint

pkg/runtimewatcher, pkg/controlplane and pkg/resolver do not record any
metrics.

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (policy_level, hook
    name, action, op)
  - Never label by container ID or PID — unbounded cardinality

Timer Pattern:
  - Create timer at operation start
  - Explicitly call ObserveDuration/ObserveDurationVec when the operation
    completes

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any lockc package, no initialization required by callers

# Troubleshooting

Missing Metrics:
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)

High Cardinality:
  - Cause: Labeling by container ID or PID instead of policy_level/action/op

Stale containers/processes gauges:
  - Cause: Collector not started, or tables.Tables not wired into NewCollector

# Monitoring

Prometheus Queries (PromQL):

Container Health:
  - Total containers: sum(lockc_containers_total)
  - Restricted containers: lockc_containers_total{policy_level="restricted"}

Hook Activity:
  - Deny rate by hook: rate(lockc_hook_decisions_total{decision="deny"}[5m])

Policy Resolution:
  - p95 resolution latency: histogram_quantile(0.95, lockc_policy_resolution_duration_seconds_bucket)
  - Fallback rate: rate(lockc_policy_resolution_fallbacks_total[5m])

Control Plane:
  - Queue depth: lockc_control_plane_queue_depth
  - p99 apply latency: histogram_quantile(0.99, lockc_control_plane_command_duration_seconds_bucket)

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
