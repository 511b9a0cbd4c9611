// Package repo is the boundary to the system of record for channels and
// memberships. The relay core treats every call as potentially failing I/O
// and never retries on its own.
package repo

import (
	"context"
	"errors"

	"github.com/LeventeLantos/signal-relay/internal/model"
)

var ErrChannelNotFound = errors.New("channel not found")

type ChannelRepository interface {
	// Find loads a channel with its memberships.
	Find(ctx context.Context, phoneNumber string) (*model.Channel, error)
	FindAll(ctx context.Context) ([]model.Channel, error)
	// UpdateExpiry persists a new default disappearing-message timer.
	UpdateExpiry(ctx context.Context, phoneNumber string, expirySeconds int) error
}

type MembershipRepository interface {
	ResolveMemberType(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (model.MemberType, error)
	ResolveLanguage(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, memberType model.MemberType) (string, error)
	// AddAdmin promotes or creates an admin membership. It MUST be
	// idempotent: re-adding an existing admin succeeds and leaves the type
	// ADMIN. A deliberately repeated ADD is the only way to trigger the
	// failing welcome send that drives safety-number re-trust.
	AddAdmin(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (model.Membership, error)
	AddSubscriber(ctx context.Context, channelPhoneNumber, memberPhoneNumber, language string) (model.Membership, error)
	// RemoveMember deletes the membership row entirely.
	RemoveMember(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) error
}

type MessageCountRepository interface {
	CountBroadcast(ctx context.Context, channelPhoneNumber string) error
	CountHotline(ctx context.Context, channelPhoneNumber string) error
	CountCommand(ctx context.Context, channelPhoneNumber string) error
}

type DeauthorizationRepository interface {
	// Create records that an admin was deauthorized, for audit and for
	// rate-limiting repeat notifications.
	Create(ctx context.Context, channelPhoneNumber, memberPhoneNumber, fingerprint string) error
}
