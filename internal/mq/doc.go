// Package mq wraps POSIX message queues for same-host record exchange.
//
// A queue is a named, kernel-managed, bounded FIFO of discrete messages. Its
// message size and depth are fixed when the queue is created and cannot be
// changed afterwards.
//
// Lifecycle:
//
//	Unopened --OpenOrCreate--> Open --Close--> Closed --Unlink--> Unlinked
//
// Unlinked is terminal for a name until a process creates it again. Closing
// only releases this process's descriptor; other processes keep using the
// queue until someone calls Unlink.
//
// Semantics:
//   - Send blocks while the queue is full
//   - Receive blocks while the queue is empty
//   - No timeouts, no cancellation, no retries
//   - Each message is delivered whole or not at all
//
// Example Usage:
//
//	q, err := mq.OpenOrCreate("/tables", mq.WriteOnly, mq.DefaultMaxItemSize, mq.DefaultMaxQueueSize)
//	if err != nil {
//		return err
//	}
//	defer q.Close()
//	err = q.Send(buf)
package mq
