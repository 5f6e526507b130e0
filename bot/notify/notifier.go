// Package notify formats outcome summaries and sends them through pluggable
// transports. This tier is best effort: a notification failure is logged and
// swallowed, never failing the originating action.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/hrygo/socialbot/bot/prefs"
	"github.com/hrygo/socialbot/store"
)

// Transport delivers one rendered notification. Address semantics are
// transport-specific (email address, telegram chat id).
type Transport interface {
	Name() string
	Send(ctx context.Context, address, subject, plainBody, htmlBody string) error
}

// Recipient is the resolved delivery target for one user.
type Recipient struct {
	Method  string
	Address string
	Enabled bool
}

// RecipientFromPreferences derives the delivery target from a resolved
// preference set, falling back to the operator address for users without one.
func RecipientFromPreferences(p *prefs.Resolved, fallbackEmail string) Recipient {
	r := Recipient{
		Method:  p.NotificationMethod,
		Enabled: p.NotificationsEnabled,
	}
	switch p.NotificationMethod {
	case store.NotificationMethodTelegram:
		if p.TelegramChatID != 0 {
			r.Address = strconv.FormatInt(p.TelegramChatID, 10)
		}
	default:
		r.Address = p.Email
	}
	if r.Address == "" {
		r.Method = store.NotificationMethodEmail
		r.Address = fallbackEmail
	}
	return r
}

// Notifier routes summaries to the transport matching the recipient's method.
type Notifier struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

func NewNotifier() *Notifier {
	return &Notifier{transports: make(map[string]Transport)}
}

// Register adds a transport under its own name.
func (n *Notifier) Register(t Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transports[t.Name()] = t
}

// Notify formats and sends one outcome summary. All failure modes are logged
// and swallowed.
func (n *Notifier) Notify(ctx context.Context, recipient Recipient, results []*store.ActionResult) {
	if len(results) == 0 {
		return
	}
	if !recipient.Enabled {
		slog.Debug("notifications disabled for recipient, skipping")
		return
	}
	if recipient.Address == "" {
		slog.Warn("no notification address resolved, skipping", "method", recipient.Method)
		return
	}

	n.mu.RLock()
	transport, ok := n.transports[recipient.Method]
	n.mu.RUnlock()
	if !ok {
		slog.Warn("no transport registered for notification method", "method", recipient.Method)
		return
	}

	subject, plainBody, htmlBody, err := FormatSummary(results)
	if err != nil {
		slog.Error("failed to format notification", "error", err)
		return
	}

	if err := transport.Send(ctx, recipient.Address, subject, plainBody, htmlBody); err != nil {
		slog.Error("failed to send notification",
			"method", recipient.Method, "address", recipient.Address, "error", err)
		return
	}

	slog.Info("notification sent", "method", recipient.Method, "results", len(results))
}
