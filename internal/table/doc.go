/*
Package table binds a named message queue to the record codec.

A TableInterface owns one queue descriptor behind a mutex so several
goroutines in a process can share it. Writers open the queue write-only and
create it if needed; readers open it read-only, also creating it so a
consumer may start before any producer.

	w, err := table.NewWriter("/orders")
	if err != nil {
		return err
	}
	defer w.Close()

	err = w.WriteClientItem(codec.ClientItem{
		TableID: "orders",
		Action:  codec.ActionAdd,
		Key:     []byte("42"),
		Payload: payload,
	})

Close releases the descriptor but never removes the queue from the kernel
namespace; call Unlink for that. A TableInterface that is garbage collected
without Close is closed on a best-effort basis and any failure is logged.
*/
package table
