// Package config provides 12-factor configuration management for memipc.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file can overlay the environment, and CLI flags override both.
//
// Configuration Sections:
//   - Queue: message queue name, reply queue, capacity, permission bits
//   - SharedMemory: region directory, name and size for the record journal
//   - Logging: log level, output format and an optional, optionally rotated, log file
//   - Metrics: Prometheus endpoint address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Consuming %s (%d x %d bytes)\n", cfg.Queue.Name, cfg.Queue.MaxQueueSize, cfg.Queue.MaxItemSize)
//
// Environment Variables:
//   - MEMIPC_QUEUE_NAME, MEMIPC_REPLY_QUEUE, MEMIPC_MAX_ITEM_SIZE, MEMIPC_MAX_QUEUE_SIZE
//   - MEMIPC_QUEUE_PERM, MEMIPC_RAISE_RLIMIT
//   - MEMIPC_SHM_DIR, MEMIPC_SHM_NAME, MEMIPC_SHM_SIZE
//   - LOG_LEVEL, LOG_DEV, LOG_FILE
//   - LOG_ROTATE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS, LOG_COMPRESS
//   - METRICS_ADDR, METRICS_ENABLED
package config
