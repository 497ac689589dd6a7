/*
Package monitoring provides metrics collection for the IPC channels.

# Overview

This package implements Prometheus-based metrics for message queues, shared
memory regions, record decoding and the shadow-table server's HTTP surface.
Every Metrics value owns its own registry so several can coexist in tests.

# Features

- Message counts and sizes per queue and direction
- Operation latency and error kinds per component (table, server)
- Decode failures per record shape and error kind
- Queue depth gauge sampled from the kernel
- Records applied to the shadow table per action
- HTTP request metrics for the gin router
- Uptime

A nil *Metrics is valid and records nothing, so components can take one
optionally.

# Usage

	metrics := monitoring.NewMetrics()

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordMessage("/tables", monitoring.DirectionSent, len(buf), nil)

	timer := monitoring.NewTimer(metrics, "table", "write")
	// ... perform operation ...
	timer.Stop(err)
*/
package monitoring
