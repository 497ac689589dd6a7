// Package main is the entry point for the memipc shadow-table server.
//
// The server consumes table mutations from a POSIX message queue and keeps a
// shadow copy of every table it sees. Producers on the same host write
// ClientItems to the queue; with -reply the server answers each one with a
// ServerItem on a second queue.
//
// Configuration:
//   - Environment variables (MEMIPC_*, LOG_*, METRICS_*)
//   - An optional YAML file given with -config
//   - CLI flags (override both)
//
// Usage:
//
//	# Consume /tables and log every transaction to a file
//	./memipc-server -name /tables -logfile /var/log/memipc.log
//
//	# Development mode (colored logs) with verbose output and metrics
//	./memipc-server -name /tables -debug -verbose -metrics :9464
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
