package model

type MemberType string

const (
	MemberTypeAdmin      MemberType = "ADMIN"
	MemberTypeSubscriber MemberType = "SUBSCRIBER"
	MemberTypeNone       MemberType = "NONE"
)

// Membership relates a member phone number to a channel. A phone number has
// at most one membership row per channel.
type Membership struct {
	ChannelPhoneNumber string
	MemberPhoneNumber  string
	Type               MemberType
	Language           string
}

// Sender is the per-message resolution of who sent an inbound message.
// Derived from a membership lookup, never persisted.
type Sender struct {
	PhoneNumber string
	Type        MemberType
	Language    string
}
