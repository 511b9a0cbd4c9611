// Package dispatcher is the relay's event loop: it consumes the daemon's
// inbound stream, classifies each event, and drives the reaction through
// the executor, messenger, resend queue, and safety service.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/LeventeLantos/signal-relay/internal/commands"
	"github.com/LeventeLantos/signal-relay/internal/locale"
	"github.com/LeventeLantos/signal-relay/internal/metrics"
	"github.com/LeventeLantos/signal-relay/internal/model"
	"github.com/LeventeLantos/signal-relay/internal/repo"
	"github.com/LeventeLantos/signal-relay/internal/safety"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

type messenger interface {
	Dispatch(ctx context.Context, res commands.Result, d commands.Dispatchable) error
}

type safetyService interface {
	TrustAndResend(ctx context.Context, uf safety.UpdatableFingerprint) error
	Deauthorize(ctx context.Context, uf safety.UpdatableFingerprint) error
}

type resendQueue interface {
	Enqueue(req signald.Request) (time.Duration, bool)
}

type transport interface {
	SetExpiration(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, expiresInSeconds int) error
}

type notifier interface {
	NotifyMaintainers(ctx context.Context, message string)
}

type Config struct {
	DefaultLanguage string
	// HandleTimeout bounds the work spawned for a single event.
	HandleTimeout time.Duration
}

type Dispatcher struct {
	channels    repo.ChannelRepository
	memberships repo.MembershipRepository
	executor    commands.Executor
	messenger   messenger
	safety      safetyService
	resend      resendQueue
	transport   transport
	notifier    notifier
	counters    *metrics.Counters
	cfg         Config
	// memberLocks serializes trust decisions and timer reconciliation per
	// (channel, member) pair so concurrent events cannot interleave them.
	memberLocks *keyedMutex
	log         *slog.Logger
}

func New(
	channels repo.ChannelRepository,
	memberships repo.MembershipRepository,
	executor commands.Executor,
	messenger messenger,
	safety safetyService,
	resend resendQueue,
	transport transport,
	notifier notifier,
	counters *metrics.Counters,
	cfg Config,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = time.Minute
	}
	return &Dispatcher{
		channels:    channels,
		memberships: memberships,
		executor:    executor,
		messenger:   messenger,
		safety:      safety,
		resend:      resend,
		transport:   transport,
		notifier:    notifier,
		counters:    counters,
		cfg:         cfg,
		memberLocks: newKeyedMutex(),
		log:         log.With("component", "dispatcher"),
	}
}

// Run consumes events until the channel closes or the context is canceled.
// Each event is handled on its own goroutine: a slow database call or a
// WelcomeDelay sleep must not stall the stream behind it.
func (d *Dispatcher) Run(ctx context.Context, events <-chan signald.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.counters.IncInbound(ev.Type)
			go d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev signald.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic handling event", "type", ev.Type, "panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.HandleTimeout)
	defer cancel()

	switch c := Classify(ev); c.Kind {
	case KindContentMessage:
		d.handleMessage(ctx, ev, c.HasContent)
	case KindRateLimitedSend:
		d.handleRateLimit(ctx, ev)
	case KindUntrustedIdentity:
		d.handleUntrustedIdentity(ctx, ev)
	default:
		d.log.Debug("ignoring event", "type", ev.Type)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev signald.Event, hasContent bool) {
	if ev.Data.Source == nil || ev.Data.Source.Number == "" {
		d.log.Warn("message without source", "channel", ev.Data.Username)
		return
	}
	senderNumber := ev.Data.Source.Number

	channel, err := d.channels.Find(ctx, ev.Data.Username)
	if errors.Is(err, repo.ErrChannelNotFound) {
		d.log.Debug("message for unknown channel", "channel", ev.Data.Username)
		return
	}
	if err != nil {
		d.log.Error("channel lookup failed", "channel", ev.Data.Username, "err", err)
		return
	}

	sender, err := d.classifySender(ctx, channel, senderNumber)
	if err != nil {
		d.log.Error("sender classification failed",
			"channel", channel.PhoneNumber, "sender", senderNumber, "err", err)
		return
	}

	// Timer reconciliation runs for every data message, including ones with
	// no content. Returning before this point for empty messages would let a
	// member's manual timer change stick.
	d.reconcileExpiry(ctx, channel, sender, ev.Data.DataMessage.ExpiresInSeconds)

	if !hasContent {
		return
	}
	d.counters.IncRelayable()

	dispatchable := commands.Dispatchable{
		Channel: channel,
		Sender:  sender,
		Message: signald.OutboundFrom(ev),
	}
	res, err := d.executor.ProcessCommand(ctx, dispatchable)
	if err != nil {
		d.log.Error("command processing failed",
			"channel", channel.PhoneNumber, "sender", senderNumber, "err", err)
		return
	}
	if err := d.messenger.Dispatch(ctx, res, dispatchable); err != nil {
		d.log.Error("dispatch failed",
			"channel", channel.PhoneNumber, "sender", senderNumber,
			"command", res.Command, "err", err)
	}
}

func (d *Dispatcher) classifySender(ctx context.Context, channel *model.Channel, number string) (model.Sender, error) {
	memberType, err := d.memberships.ResolveMemberType(ctx, channel.PhoneNumber, number)
	if err != nil {
		return model.Sender{}, err
	}
	lang, err := d.memberships.ResolveLanguage(ctx, channel.PhoneNumber, number, memberType)
	if err != nil {
		return model.Sender{}, err
	}
	if lang == "" {
		lang = d.cfg.DefaultLanguage
	}
	return model.Sender{PhoneNumber: number, Type: memberType, Language: lang}, nil
}

// reconcileExpiry enforces the channel's disappearing-message policy. An
// admin changing the timer in their client updates the whole channel;
// anyone else changing it gets their 1:1 timer reset to the channel default.
func (d *Dispatcher) reconcileExpiry(ctx context.Context, channel *model.Channel, sender model.Sender, messageExpiry int) {
	want := channel.MessageExpirySeconds()
	if messageExpiry == want {
		return
	}

	if sender.Type == model.MemberTypeAdmin {
		if err := d.channels.UpdateExpiry(ctx, channel.PhoneNumber, messageExpiry); err != nil {
			d.log.Error("expiry update failed", "channel", channel.PhoneNumber, "err", err)
			return
		}
		channel.MessageExpiry = time.Duration(messageExpiry) * time.Second
		for _, m := range channel.Memberships {
			if m.MemberPhoneNumber == sender.PhoneNumber {
				continue
			}
			d.setExpiryLocked(ctx, channel.PhoneNumber, m.MemberPhoneNumber, messageExpiry)
		}
		d.log.Info("channel expiry updated by admin",
			"channel", channel.PhoneNumber, "admin", sender.PhoneNumber, "seconds", messageExpiry)
		return
	}

	// Non-admins cannot change the policy; push their timer back.
	d.setExpiryLocked(ctx, channel.PhoneNumber, sender.PhoneNumber, want)
}

func (d *Dispatcher) setExpiryLocked(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, seconds int) {
	key := channelPhoneNumber + "|" + memberPhoneNumber
	d.memberLocks.Lock(key)
	defer d.memberLocks.Unlock(key)

	if err := d.transport.SetExpiration(ctx, channelPhoneNumber, memberPhoneNumber, seconds); err != nil {
		d.log.Error("set expiration failed",
			"channel", channelPhoneNumber, "member", memberPhoneNumber, "err", err)
	}
}

func (d *Dispatcher) handleRateLimit(ctx context.Context, ev signald.Event) {
	req := *ev.Data.Request
	retryIn, scheduled := d.resend.Enqueue(req)

	strings := locale.In(d.cfg.DefaultLanguage)
	if scheduled {
		d.counters.IncRateLimitRetry()
		d.log.Warn("send rate limited, retry scheduled",
			"channel", req.Username, "recipient", req.RecipientNumber, "retry_in", retryIn)
		d.notifier.NotifyMaintainers(ctx, strings.RateLimitRetrying(req.Username, retryIn))
		return
	}
	d.counters.IncRateLimitAbort()
	d.log.Error("send rate limited, retries exhausted",
		"channel", req.Username, "recipient", req.RecipientNumber)
	d.notifier.NotifyMaintainers(ctx, strings.RateLimitAbandoned(req.Username))
}

// handleUntrustedIdentity splits on the blocked recipient's role. A
// subscriber's new safety number is accepted and the send retried; an
// admin's is treated as possible account compromise and their access
// revoked. The two paths are exclusive: an admin is never auto-trusted and
// a subscriber is never deauthorized.
func (d *Dispatcher) handleUntrustedIdentity(ctx context.Context, ev signald.Event) {
	channelPhoneNumber := ev.Data.Username
	memberPhoneNumber := ev.Data.Number
	if memberPhoneNumber == "" && ev.Data.Request != nil {
		memberPhoneNumber = ev.Data.Request.RecipientNumber
	}
	if memberPhoneNumber == "" {
		d.log.Warn("untrusted identity without member number", "channel", channelPhoneNumber)
		return
	}

	uf := safety.UpdatableFingerprint{
		ChannelPhoneNumber: channelPhoneNumber,
		MemberPhoneNumber:  memberPhoneNumber,
		Fingerprint:        ev.Data.Fingerprint,
		Message:            *ev.Data.Request,
	}

	memberType, err := d.memberships.ResolveMemberType(ctx, channelPhoneNumber, memberPhoneNumber)
	if err != nil {
		d.log.Error("member type lookup failed",
			"channel", channelPhoneNumber, "member", memberPhoneNumber, "err", err)
		return
	}

	key := channelPhoneNumber + "|" + memberPhoneNumber
	d.memberLocks.Lock(key)
	defer d.memberLocks.Unlock(key)

	switch memberType {
	case model.MemberTypeAdmin:
		if err := d.safety.Deauthorize(ctx, uf); err != nil {
			d.log.Error("deauthorization failed",
				"channel", channelPhoneNumber, "member", memberPhoneNumber, "err", err)
		}
	case model.MemberTypeSubscriber:
		if err := d.safety.TrustAndResend(ctx, uf); err != nil {
			d.log.Error("trust and resend failed",
				"channel", channelPhoneNumber, "member", memberPhoneNumber, "err", err)
		}
	default:
		d.log.Info("untrusted identity for non-member dropped",
			"channel", channelPhoneNumber, "member", memberPhoneNumber)
	}
}
