// Package messenger delivers the outcome of a dispatch cycle: command
// replies to the sender, broadcast fan-out to every member, and anonymous
// hotline forwards to admins.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/signal-relay/internal/cache"
	"github.com/LeventeLantos/signal-relay/internal/commands"
	"github.com/LeventeLantos/signal-relay/internal/locale"
	"github.com/LeventeLantos/signal-relay/internal/metrics"
	"github.com/LeventeLantos/signal-relay/internal/model"
	"github.com/LeventeLantos/signal-relay/internal/repo"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

type transport interface {
	Send(ctx context.Context, recipient string, msg signald.Request) error
	SetExpiration(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, expiresInSeconds int) error
}

type Config struct {
	// BroadcastBatchSize and BroadcastBatchInterval pace attachment
	// broadcasts: the daemon re-rate-limits large bursts of media sends.
	BroadcastBatchSize     int
	BroadcastBatchInterval time.Duration
	// WelcomeDelay separates a command response from the expiry-timer update
	// for newly added members, so the welcome message arrives before their
	// messages start disappearing. An ordering contract against the daemon,
	// which guarantees none itself.
	WelcomeDelay    time.Duration
	SysadminNumbers []string
}

type messageType int

const (
	typeCommand messageType = iota
	typeBroadcast
	typeHotline
)

type Messenger struct {
	transport transport
	counts    repo.MessageCountRepository
	replies   cache.ReplyIDs
	counters  *metrics.Counters
	cfg       Config
	sysadmins map[string]bool
	log       *slog.Logger
}

func New(
	transport transport,
	counts repo.MessageCountRepository,
	replies cache.ReplyIDs,
	counters *metrics.Counters,
	cfg Config,
	log *slog.Logger,
) *Messenger {
	if log == nil {
		log = slog.Default()
	}
	sysadmins := make(map[string]bool, len(cfg.SysadminNumbers))
	for _, n := range cfg.SysadminNumbers {
		sysadmins[n] = true
	}
	return &Messenger{
		transport: transport,
		counts:    counts,
		replies:   replies,
		counters:  counters,
		cfg:       cfg,
		sysadmins: sysadmins,
		log:       log.With("component", "messenger"),
	}
}

// Dispatch routes a command result to the right delivery path.
func (m *Messenger) Dispatch(ctx context.Context, res commands.Result, d commands.Dispatchable) error {
	switch m.parseMessageType(res, d) {
	case typeBroadcast:
		return m.broadcast(ctx, res.Message, d)
	case typeHotline:
		return m.hotline(ctx, d)
	default:
		return m.handleCommandResult(ctx, res, d)
	}
}

func (m *Messenger) parseMessageType(res commands.Result, d commands.Dispatchable) messageType {
	if res.Status == commands.StatusNoop && d.Sender.Type != model.MemberTypeAdmin {
		return typeHotline
	}
	if res.Command == commands.Broadcast && d.Sender.Type == model.MemberTypeAdmin {
		return typeBroadcast
	}
	return typeCommand
}

// broadcast fans a message out to every member with a per-recipient
// localized header. Text-only broadcasts go out without artificial spacing;
// broadcasts with attachments go out in paced batches.
func (m *Messenger) broadcast(ctx context.Context, body string, d commands.Dispatchable) error {
	recipients := d.Channel.Memberships

	if len(d.Message.Attachments) == 0 {
		for _, r := range recipients {
			if err := m.transport.Send(ctx, r.MemberPhoneNumber, m.withHeader(body, d, r)); err != nil {
				return fmt.Errorf("broadcast to %s: %w", r.MemberPhoneNumber, err)
			}
		}
	} else {
		for start := 0; start < len(recipients); start += m.cfg.BroadcastBatchSize {
			end := min(start+m.cfg.BroadcastBatchSize, len(recipients))

			g, gctx := errgroup.Group{}, ctx
			for _, r := range recipients[start:end] {
				g.Go(func() error {
					return m.transport.Send(gctx, r.MemberPhoneNumber, m.withHeader(body, d, r))
				})
			}
			if err := g.Wait(); err != nil {
				return fmt.Errorf("broadcast batch: %w", err)
			}

			if end < len(recipients) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(m.cfg.BroadcastBatchInterval):
				}
			}
		}
	}

	m.counters.IncBroadcast()
	if err := m.counts.CountBroadcast(ctx, d.Channel.PhoneNumber); err != nil {
		m.log.Error("broadcast count failed", "channel", d.Channel.PhoneNumber, "err", err)
	}
	return nil
}

func (m *Messenger) withHeader(body string, d commands.Dispatchable, recipient model.Membership) signald.Request {
	msg := d.Message
	var prefix string
	if recipient.Type == model.MemberTypeAdmin {
		prefix = locale.In(recipient.Language).BroadcastPrefix()
	} else {
		prefix = d.Channel.Name
	}
	msg.MessageBody = "[" + prefix + "]\n" + body
	return msg
}

// hotline forwards a subscriber message anonymously to every admin, tagged
// with a reply id, and confirms the forward to the sender in their own
// language. Disabled hotlines get an unauthorized notice instead.
func (m *Messenger) hotline(ctx context.Context, d commands.Dispatchable) error {
	if !d.Channel.HotlineOn {
		notice := locale.In(d.Sender.Language).HotlineDisabled(d.Sender.Type == model.MemberTypeSubscriber)
		return m.transport.Send(ctx, d.Sender.PhoneNumber, signald.MessageOf(d.Channel.PhoneNumber, notice))
	}

	replyID, err := m.replies.ReplyID(ctx, d.Channel.PhoneNumber, d.Sender.PhoneNumber)
	if err != nil {
		return fmt.Errorf("assign hotline reply id: %w", err)
	}

	for _, admin := range d.Channel.AdminMemberships() {
		msg := d.Message
		msg.MessageBody = "[" + locale.In(admin.Language).HotlinePrefix(replyID) + "]\n" + d.Message.MessageBody
		if err := m.transport.Send(ctx, admin.MemberPhoneNumber, msg); err != nil {
			return fmt.Errorf("hotline forward to %s: %w", admin.MemberPhoneNumber, err)
		}
	}

	confirmation := locale.In(d.Sender.Language).HotlineForwarded(d.Channel.Name)
	if err := m.transport.Send(ctx, d.Sender.PhoneNumber, signald.MessageOf(d.Channel.PhoneNumber, confirmation)); err != nil {
		return fmt.Errorf("hotline confirmation: %w", err)
	}

	m.counters.IncHotline()
	if err := m.counts.CountHotline(ctx, d.Channel.PhoneNumber); err != nil {
		m.log.Error("hotline count failed", "channel", d.Channel.PhoneNumber, "err", err)
	}
	return nil
}

func (m *Messenger) handleCommandResult(ctx context.Context, res commands.Result, d commands.Dispatchable) error {
	if err := m.respond(ctx, res, d); err != nil {
		return err
	}
	if err := m.sendNotifications(ctx, res, d); err != nil {
		return err
	}
	return m.setExpiryForNewMembers(ctx, res, d)
}

func (m *Messenger) respond(ctx context.Context, res commands.Result, d commands.Dispatchable) error {
	// PRIVATE delivers to all admins including the sender; a response here
	// would duplicate the message.
	if res.Command == commands.Private && res.Status == commands.StatusSuccess {
		return nil
	}
	if res.Message == "" {
		return nil
	}
	if err := m.transport.Send(ctx, d.Sender.PhoneNumber, signald.MessageOf(d.Channel.PhoneNumber, res.Message)); err != nil {
		return fmt.Errorf("command reply to %s: %w", d.Sender.PhoneNumber, err)
	}

	m.counters.IncCommandReply()
	// Sysadmins ping channels with INFO as informal health checks. Counting
	// those pings would hide genuinely stale channels from the recycling
	// job, which looks at message-count timestamps.
	if res.Command == commands.Info && m.sysadmins[d.Sender.PhoneNumber] {
		return nil
	}
	if err := m.counts.CountCommand(ctx, d.Channel.PhoneNumber); err != nil {
		m.log.Error("command count failed", "channel", d.Channel.PhoneNumber, "err", err)
	}
	return nil
}

func (m *Messenger) sendNotifications(ctx context.Context, res commands.Result, d commands.Dispatchable) error {
	if res.Status != commands.StatusSuccess {
		return nil
	}
	for _, n := range res.Notifications {
		if err := m.transport.Send(ctx, n.Recipient, signald.MessageOf(d.Channel.PhoneNumber, n.Message)); err != nil {
			return fmt.Errorf("notification to %s: %w", n.Recipient, err)
		}
	}
	return nil
}

// setExpiryForNewMembers aligns new members' disappearing-message timers
// with the channel default, after WelcomeDelay so the welcome notification
// lands first.
func (m *Messenger) setExpiryForNewMembers(ctx context.Context, res commands.Result, d commands.Dispatchable) error {
	if res.Status != commands.StatusSuccess {
		return nil
	}

	var targets []string
	switch res.Command {
	case commands.Add, commands.Invite:
		targets = res.Payload
	case commands.Join, commands.Accept:
		targets = []string{d.Sender.PhoneNumber}
	default:
		return nil
	}
	if len(targets) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.WelcomeDelay):
	}

	for _, member := range targets {
		err := m.transport.SetExpiration(ctx, d.Channel.PhoneNumber, member, d.Channel.MessageExpirySeconds())
		if err != nil {
			return fmt.Errorf("set expiry for %s: %w", member, err)
		}
	}
	return nil
}
