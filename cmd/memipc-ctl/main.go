package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/memipc/internal/codec"
	"github.com/GriffinCanCode/memipc/internal/config"
	"github.com/GriffinCanCode/memipc/internal/logging"
	"github.com/GriffinCanCode/memipc/internal/mq"
	"github.com/GriffinCanCode/memipc/internal/table"
)

func main() {
	name := flag.String("name", "", "Queue to write to (defaults to MEMIPC_QUEUE_NAME)")
	tableID := flag.String("table", "", "Table the record applies to")
	action := flag.String("action", "noop", "Record action: noop, add, delete or query")
	key := flag.String("key", "", "Record key")
	meta := flag.String("meta", "", "Record metadata")
	payload := flag.String("payload", "", "Record payload")
	priority := flag.Uint("priority", 0, "Record priority (0-65535)")
	waitReply := flag.String("wait-reply", "", "Wait for a ServerItem on this queue and print it")
	unlink := flag.Bool("unlink", false, "Unlink the queue after writing, or instead of writing when -table is empty")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
	}
	if *name != "" {
		cfg.Queue.Name = *name
	}

	logger := logging.NewNop()
	if *verbose {
		logger = logging.NewDevelopment()
	}
	defer logger.Sync()

	if *tableID == "" && *unlink {
		if err := mq.Unlink(cfg.Queue.Name); err != nil {
			fail("%v", err)
		}
		logger.Info("Queue unlinked", zap.String("queue", cfg.Queue.Name))
		return
	}

	act, err := codec.ParseAction(*action)
	if err != nil {
		fail("%v", err)
	}
	if *priority > 0xffff {
		fail("priority %d does not fit in 16 bits", *priority)
	}
	item := codec.ClientItem{
		TableID:  *tableID,
		Action:   act,
		Priority: uint16(*priority),
		Key:      bytesOrNil(*key),
		Meta:     bytesOrNil(*meta),
		Payload:  bytesOrNil(*payload),
	}

	opts := []table.Option{
		table.WithCapacity(cfg.Queue.MaxItemSize, cfg.Queue.MaxQueueSize),
		table.WithPerm(os.FileMode(cfg.Queue.Perm)),
		table.WithLogger(logger),
	}

	if cfg.Queue.RaiseRlimit {
		if err := mq.RaiseLimit(cfg.Queue.MaxItemSize, cfg.Queue.MaxQueueSize); err != nil {
			logger.Warn("Could not raise RLIMIT_MSGQUEUE", zap.Error(err))
		}
	}

	// Open the reply queue first so a fast server finds it.
	var replies *table.TableInterface
	if *waitReply != "" {
		replies, err = table.NewReader(*waitReply, opts...)
		if err != nil {
			fail("%v", err)
		}
		defer replies.Close()
	}

	w, err := table.NewWriter(cfg.Queue.Name, opts...)
	if err != nil {
		fail("%v", err)
	}
	if err := w.WriteClientItem(item); err != nil {
		w.Close()
		fail("%v", err)
	}
	logger.Info("Record sent",
		zap.String("queue", cfg.Queue.Name),
		zap.String("table", item.TableID),
		zap.Stringer("action", item.Action),
	)

	if *unlink {
		err = w.CloseAndUnlink()
	} else {
		err = w.Close()
	}
	if err != nil {
		fail("%v", err)
	}

	if replies != nil {
		reply, err := replies.ReadServerItem()
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("table=%s action=%s index=%d value=%q\n", reply.TableID, reply.Action, reply.Index, reply.Value)
	}
}

func bytesOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "memipc-ctl: "+format+"\n", args...)
	os.Exit(1)
}
