// Package safety reacts to reported safety-number changes. Ordinary members
// are optimistically re-trusted and their message retried; admins can
// broadcast to everyone, so a changed safety number is treated as possible
// compromise and their access is revoked until confirmed out-of-band.
package safety

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LeventeLantos/signal-relay/internal/locale"
	"github.com/LeventeLantos/signal-relay/internal/repo"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

// UpdatableFingerprint is produced when the daemon reports a safety-number
// mismatch for a previously attempted send. Consumed exactly once.
type UpdatableFingerprint struct {
	ChannelPhoneNumber string
	MemberPhoneNumber  string
	Fingerprint        string
	Message            signald.Request
}

type transport interface {
	Trust(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) error
	Send(ctx context.Context, recipient string, msg signald.Request) error
}

type Service struct {
	transport   transport
	channels    repo.ChannelRepository
	memberships repo.MembershipRepository
	deauths     repo.DeauthorizationRepository
	log         *slog.Logger
}

func NewService(
	transport transport,
	channels repo.ChannelRepository,
	memberships repo.MembershipRepository,
	deauths repo.DeauthorizationRepository,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		transport:   transport,
		channels:    channels,
		memberships: memberships,
		deauths:     deauths,
		log:         log.With("component", "safety"),
	}
}

// TrustAndResend accepts the member's new safety number and re-issues the
// original message. On trust failure nothing is resent and no membership
// changes.
func (s *Service) TrustAndResend(ctx context.Context, uf UpdatableFingerprint) error {
	if err := s.transport.Trust(ctx, uf.ChannelPhoneNumber, uf.MemberPhoneNumber); err != nil {
		return fmt.Errorf("trust %s on %s: %w", uf.MemberPhoneNumber, uf.ChannelPhoneNumber, err)
	}
	if err := s.transport.Send(ctx, uf.MemberPhoneNumber, uf.Message); err != nil {
		return fmt.Errorf("resend to %s: %w", uf.MemberPhoneNumber, err)
	}
	s.log.Info("trusted new safety number and resent",
		"channel", uf.ChannelPhoneNumber, "member", uf.MemberPhoneNumber)
	return nil
}

// Deauthorize removes the admin's membership entirely, records the
// deauthorization, and alerts every remaining admin in their own language
// with instructions for re-adding the member once their identity is
// confirmed. No step retries automatically; a failure surfaces to the
// caller and an operator or a later command must re-drive it.
func (s *Service) Deauthorize(ctx context.Context, uf UpdatableFingerprint) error {
	channel, err := s.channels.Find(ctx, uf.ChannelPhoneNumber)
	if err != nil {
		return fmt.Errorf("deauthorize %s on %s: %w", uf.MemberPhoneNumber, uf.ChannelPhoneNumber, err)
	}

	if err := s.memberships.RemoveMember(ctx, uf.ChannelPhoneNumber, uf.MemberPhoneNumber); err != nil {
		return fmt.Errorf("remove membership of %s: %w", uf.MemberPhoneNumber, err)
	}
	if err := s.deauths.Create(ctx, uf.ChannelPhoneNumber, uf.MemberPhoneNumber, uf.Fingerprint); err != nil {
		return fmt.Errorf("record deauthorization of %s: %w", uf.MemberPhoneNumber, err)
	}

	for _, admin := range channel.AdminsExcept(uf.MemberPhoneNumber) {
		alert := locale.In(admin.Language).Deauthorization(uf.MemberPhoneNumber)
		msg := signald.MessageOf(uf.ChannelPhoneNumber, alert)
		if err := s.transport.Send(ctx, admin.MemberPhoneNumber, msg); err != nil {
			return fmt.Errorf("deauthorization alert to %s: %w", admin.MemberPhoneNumber, err)
		}
	}

	s.log.Info("deauthorized admin after safety number change",
		"channel", uf.ChannelPhoneNumber, "member", uf.MemberPhoneNumber)
	return nil
}
