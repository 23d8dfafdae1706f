// Package audit records who did what to which resource.
//
// The switching engine uses it for subscription and order notes such as
// "Customer switched from: Monthly to Weekly.":
//
//	notes := audit.NewLogger(storage)
//	_ = notes.Log(ctx, "subscription.switched",
//		audit.WithResource("subscription", sub.ID.String()),
//		audit.WithMessage(msg),
//	)
package audit
