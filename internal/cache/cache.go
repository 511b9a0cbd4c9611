package cache

import (
	"context"
	"errors"
)

var ErrNoSuchReplyID = errors.New("no member recorded for reply id")

// ReplyIDs assigns stable small integers to hotline senders so admins can
// answer an anonymous message by number without ever learning who sent it.
type ReplyIDs interface {
	// ReplyID returns the id for a (channel, member) pair, assigning the
	// next one on first use.
	ReplyID(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (int64, error)
	// MemberFor resolves a reply id back to the member it was assigned to.
	MemberFor(ctx context.Context, channelPhoneNumber string, replyID int64) (string, error)
}
