package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/subalert/subalert/internal/pkg/env"
)

// Channel identifiers as stored in reminder configs and delivery logs.
const (
	ChannelEmail  = "email"
	ChannelSMS    = "sms"
	ChannelFeishu = "feishu"
	ChannelWechat = "wechat"
)

// Message is one rendered notification bound for a single recipient.
type Message struct {
	Channel   string
	Recipient string
	Subject   string
	Content   string
}

// Sender delivers a message over one channel. The returned string is the raw
// provider response, persisted to the delivery log for auditing. Senders honor
// context cancellation and deadlines.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) (string, error)
}

// Registry maps channel identifiers to their configured senders.
type Registry map[string]Sender

// Register adds a sender under its channel name.
func (r Registry) Register(s Sender) {
	r[s.Name()] = s
}

// Get resolves a channel to its sender.
func (r Registry) Get(channel string) (Sender, bool) {
	s, ok := r[channel]
	return s, ok
}

// Channels lists the registered channel names in stable order.
func (r Registry) Channels() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromEnv builds the sender registry from environment config. Email
// is always available; webhook and SMS channels register only when their
// endpoints are configured.
func NewRegistryFromEnv() Registry {
	registry := Registry{}
	registry.Register(NewEmailSender())

	if url := env.GetEnv("FEISHU_WEBHOOK_URL", ""); url != "" {
		registry.Register(NewFeishuSender(url, env.GetEnv("FEISHU_SECRET", "")))
	}
	if url := env.GetEnv("WECHAT_WEBHOOK_URL", ""); url != "" {
		registry.Register(NewWechatSender(url))
	}
	if url := env.GetEnv("SMS_GATEWAY_URL", ""); url != "" {
		registry.Register(NewSMSSender(
			url,
			env.GetEnv("SMS_ACCESS_KEY_ID", ""),
			env.GetEnv("SMS_ACCESS_KEY_SECRET", ""),
			env.GetEnv("SMS_SIGN_NAME", ""),
		))
	}
	return registry
}

// ErrUnknownChannel reports a reminder configured with a channel that has no
// registered sender.
type ErrUnknownChannel struct {
	Channel string
}

func (e ErrUnknownChannel) Error() string {
	return fmt.Sprintf("notify: no sender registered for channel %q", e.Channel)
}
