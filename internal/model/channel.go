package model

import "time"

type VouchMode string

const (
	VouchOff   VouchMode = "OFF"
	VouchOn    VouchMode = "ON"
	VouchAdmin VouchMode = "ADMIN"
)

// Channel is a phone-number-addressed broadcast/hotline group. The
// authoritative copy lives in the database; the relay core only ever holds
// transient snapshots loaded per inbound message.
type Channel struct {
	PhoneNumber   string
	Name          string
	Description   string
	HotlineOn     bool
	VouchMode     VouchMode
	VouchLevel    int
	MessageExpiry time.Duration
	Memberships   []Membership
}

// MessageExpirySeconds returns the channel's disappearing-message timer in
// the unit signald speaks.
func (c *Channel) MessageExpirySeconds() int {
	return int(c.MessageExpiry / time.Second)
}

func (c *Channel) AdminMemberships() []Membership {
	var admins []Membership
	for _, m := range c.Memberships {
		if m.Type == MemberTypeAdmin {
			admins = append(admins, m)
		}
	}
	return admins
}

// AdminsExcept returns all admin memberships except the given phone number.
func (c *Channel) AdminsExcept(phoneNumber string) []Membership {
	var admins []Membership
	for _, m := range c.Memberships {
		if m.Type == MemberTypeAdmin && m.MemberPhoneNumber != phoneNumber {
			admins = append(admins, m)
		}
	}
	return admins
}
