package cache

import (
	"context"
	"strconv"
	"sync"
)

// MemoryReplyIDs is the fallback used when redis is not configured. Ids
// reset on restart, which only costs admins the ability to answer hotline
// messages from before the restart.
type MemoryReplyIDs struct {
	mu       sync.Mutex
	seq      map[string]int64
	byMember map[string]int64
	byID     map[string]string
}

func NewMemoryReplyIDs() *MemoryReplyIDs {
	return &MemoryReplyIDs{
		seq:      make(map[string]int64),
		byMember: make(map[string]int64),
		byID:     make(map[string]string),
	}
}

func (c *MemoryReplyIDs) ReplyID(_ context.Context, channelPhoneNumber, memberPhoneNumber string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	memberKey := channelPhoneNumber + "|" + memberPhoneNumber
	if id, ok := c.byMember[memberKey]; ok {
		return id, nil
	}

	c.seq[channelPhoneNumber]++
	id := c.seq[channelPhoneNumber]
	c.byMember[memberKey] = id
	c.byID[idKey(channelPhoneNumber, id)] = memberPhoneNumber
	return id, nil
}

func (c *MemoryReplyIDs) MemberFor(_ context.Context, channelPhoneNumber string, replyID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	member, ok := c.byID[idKey(channelPhoneNumber, replyID)]
	if !ok {
		return "", ErrNoSuchReplyID
	}
	return member, nil
}

func idKey(channelPhoneNumber string, id int64) string {
	return channelPhoneNumber + "#" + strconv.FormatInt(id, 10)
}
