package dispatcher

import (
	"strings"

	"github.com/LeventeLantos/signal-relay/internal/signald"
)

// Kind partitions the inbound event stream into the four shapes the
// dispatcher acts on.
type Kind int

const (
	// KindIgnorable covers everything the relay has no reaction to:
	// receipts, typing indicators, unparseable frames, errors that are not
	// rate limits.
	KindIgnorable Kind = iota
	// KindContentMessage is an inbound message event carrying a data
	// message payload. It may still have an empty body and no attachments;
	// HasContent distinguishes relayable messages from bare timer updates.
	KindContentMessage
	// KindRateLimitedSend is a daemon error rejecting one of our own sends
	// because of rate limiting, with the original request echoed back.
	KindRateLimitedSend
	// KindUntrustedIdentity is a send blocked by a changed safety number.
	KindUntrustedIdentity
)

type Classification struct {
	Kind       Kind
	HasContent bool
}

// Classify is a pure function over a single event. Events with a data
// message but no content still classify as content messages so the
// dispatcher can reconcile disappearing-message timers; they are not
// relayed.
func Classify(ev signald.Event) Classification {
	switch ev.Type {
	case signald.TypeError:
		if ev.Data.Request != nil && ev.Data.Request.Type == signald.TypeSend && isRateLimit(ev.Data.Message) {
			return Classification{Kind: KindRateLimitedSend}
		}
	case signald.TypeUntrustedIdentity:
		if ev.Data.Request != nil {
			return Classification{Kind: KindUntrustedIdentity}
		}
	case signald.TypeMessage:
		if dm := ev.Data.DataMessage; dm != nil {
			return Classification{
				Kind:       KindContentMessage,
				HasContent: dm.Body != "" || len(dm.Attachments) > 0,
			}
		}
	}
	return Classification{Kind: KindIgnorable}
}

// isRateLimit matches the daemon's rate-limit rejections by error text. The
// daemon does not expose a structured code, so this is a substring match on
// the upstream 413 status and its prose form. Overmatching here turns a
// permanent failure into a bounded retry loop, which the backoff ceiling
// caps.
func isRateLimit(message string) bool {
	return strings.Contains(message, "413") ||
		strings.Contains(strings.ToLower(message), "rate limit")
}
