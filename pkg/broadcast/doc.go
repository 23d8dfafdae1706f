// Package broadcast provides generic in-process publish/subscribe.
//
//	b := broadcast.NewMemoryBroadcaster[Event](16)
//	go broadcast.Listen(ctx, b.Subscribe(ctx), handle, logErr)
//	_ = b.Broadcast(ctx, broadcast.Message[Event]{Data: ev})
package broadcast
