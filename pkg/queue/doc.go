// Package queue is a small persistent task queue with typed handlers.
//
// Payloads are JSON encoded and routed by their Go type name:
//
//	type CompleteSwitch struct{ OrderID uuid.UUID }
//
//	storage := queue.NewMemoryStorage()
//	enq, _ := queue.NewEnqueuer(storage)
//	_ = enq.Enqueue(ctx, CompleteSwitch{OrderID: id})
//
//	worker, _ := queue.NewWorker(storage)
//	worker.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p CompleteSwitch) error {
//		return svc.CompleteSwitches(ctx, p.OrderID)
//	}))
//	g.Go(worker.Run(ctx))
//
// Failed tasks are retried with a linear backoff and moved to the dead letter
// queue once MaxRetries is exhausted.
package queue
