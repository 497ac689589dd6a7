// Package server runs the shadow-table consumer.
//
// The server drains ClientItems from a request queue and keeps an in-memory
// shadow copy of every table the records mention:
//   - Add stores the payload under its key
//   - Delete removes the key
//   - Query looks the key up
//   - Noop changes nothing and is used as a ping and as the shutdown wakeup
//
// When a reply queue is configured every applied record is answered with a
// ServerItem whose Index is the number of entries left in the table. Add and
// Delete records may also be appended to a shared-memory journal so a
// restarted server can rebuild its shadow.
//
// Server Lifecycle:
//  1. Load configuration from environment, flags and an optional YAML file
//  2. Open the request queue, the wakeup writer and the reply queue
//  3. Open the journal and replay it into the shadow
//  4. Start the metrics endpoint when enabled
//  5. Consume records until Shutdown
//  6. Close every channel; queues are never unlinked here
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
