package switcher

import (
	"context"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/switchkit/pkg/email"
)

// NotifyOption configures NotifyListener.
type NotifyOption func(*notifier)

type notifier struct {
	sender  email.Sender
	lang    language.Tag
	subject string
}

// WithNotifyLanguage sets the language used to format amounts and dates.
func WithNotifyLanguage(tag language.Tag) NotifyOption {
	return func(n *notifier) { n.lang = tag }
}

// WithNotifySubject overrides the email subject.
func WithNotifySubject(subject string) NotifyOption {
	return func(n *notifier) { n.subject = subject }
}

// NotifyListener emails the customer a summary of a completed switch.
// Events without a customer email are ignored.
func NotifyListener(sender email.Sender, opts ...NotifyOption) Listener {
	n := &notifier{sender: sender, lang: language.English, subject: "Your subscription has been updated"}
	for _, opt := range opts {
		opt(n)
	}
	return n.notify
}

func (n *notifier) notify(ctx context.Context, ev SwitchCompletedEvent) error {
	if ev.Email == "" {
		return nil
	}
	body, err := email.Render(ctx, SwitchSummaryEmail(ev, n.lang))
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.Message{
		SendTo:   ev.Email,
		Subject:  n.subject,
		BodyHTML: body,
		Tag:      "subscription-switch",
	})
}

// SwitchSummaryEmail renders the switch confirmation sent to the customer.
// Amounts are formatted for lang.
func SwitchSummaryEmail(ev SwitchCompletedEvent, lang language.Tag) templ.Component {
	p := message.NewPrinter(lang)
	title := cases.Title(lang)

	v := summaryView{OrderTotal: formatMoney(p, ev.Currency, ev.OrderTotal)}
	for _, sub := range ev.Subscriptions {
		row := summarySubscription{
			Switches: sub.Switches,
			Status:   title.String(string(sub.Status)),
			Total:    formatMoney(p, ev.Currency, sub.Total),
		}
		if !sub.NextPayment.IsZero() {
			row.NextPayment = sub.NextPayment.Format("January 2, 2006")
		}
		v.Subscriptions = append(v.Subscriptions, row)
	}
	return switchSummary(v)
}

type summaryView struct {
	OrderTotal    string
	Subscriptions []summarySubscription
}

type summarySubscription struct {
	Switches    []SwitchedItem
	Status      string
	Total       string
	NextPayment string
}

func formatMoney(p *message.Printer, code string, amount decimal.Decimal) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return p.Sprintf("%s %s", amount.StringFixed(2), code)
	}
	return p.Sprint(currency.Symbol(unit.Amount(amount.InexactFloat64())))
}
