package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Error returns an "error" attribute, or an empty one for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr { return slog.String("component", name) }

func Event(name string) slog.Attr { return slog.String("event", name) }

func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

func SubscriptionID(id fmt.Stringer) slog.Attr { return slog.String("subscription_id", id.String()) }

func OrderID(id fmt.Stringer) slog.Attr { return slog.String("order_id", id.String()) }

func CustomerID(id fmt.Stringer) slog.Attr { return slog.String("customer_id", id.String()) }

func SwitchType(t string) slog.Attr { return slog.String("switch_type", t) }

func OrderStatus(s string) slog.Attr { return slog.String("order_status", s) }
