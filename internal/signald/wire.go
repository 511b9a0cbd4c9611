// Package signald speaks the signald socket protocol: newline-delimited JSON
// frames over long-lived unix-socket connections, with asynchronous and
// unordered replies.
package signald

import (
	"encoding/json"
	"sort"
)

// Outbound request types.
const (
	TypeSubscribe     = "subscribe"
	TypeSend          = "send"
	TypeRegister      = "register"
	TypeVerify        = "verify"
	TypeTrust         = "trust"
	TypeGetIdentities = "get_identities"
	TypeSetExpiration = "set_expiration"
	TypeVersion       = "version"
)

// Inbound event types.
const (
	TypeMessage             = "message"
	TypeError               = "unexpected_error"
	TypeUntrustedIdentity   = "untrusted_identity"
	TypeIdentities          = "identities"
	TypeVerificationSuccess = "verification_succeeded"
	TypeVerificationError   = "verification_error"
)

// Trust levels reported by get_identities.
const (
	TrustLevelTrustedVerified   = "TRUSTED_VERIFIED"
	TrustLevelTrustedUnverified = "TRUSTED_UNVERIFIED"
	TrustLevelUntrusted         = "UNTRUSTED"
)

// Request is an outbound frame. Every request carries a type discriminator
// and the channel phone number as username; the remaining fields depend on
// the type. A Request with Type "send" doubles as the relay's outbound
// message representation.
type Request struct {
	Type             string       `json:"type"`
	Username         string       `json:"username,omitempty"`
	RecipientNumber  string       `json:"recipientNumber,omitempty"`
	MessageBody      string       `json:"messageBody,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Code             string       `json:"code,omitempty"`
	Fingerprint      string       `json:"fingerprint,omitempty"`
	ExpiresInSeconds int          `json:"expiresInSeconds,omitempty"`
}

// Event is an inbound frame: a type discriminator plus a type-dependent
// data payload.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	Username    string       `json:"username,omitempty"`
	Source      *Source      `json:"source,omitempty"`
	Number      string       `json:"number,omitempty"`
	Message     string       `json:"message,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Request     *Request     `json:"request,omitempty"`
	DataMessage *DataMessage `json:"dataMessage,omitempty"`
	Identities  []Identity   `json:"identities,omitempty"`
	Version     string       `json:"version,omitempty"`
}

// Source identifies the sender of an inbound message. Older signald versions
// encode it as a bare string, newer ones as an object with a number field;
// both decode into Number.
type Source struct {
	Number string `json:"number"`
}

func (s *Source) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &s.Number)
	}
	type alias Source
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*s = Source(a)
	return nil
}

type DataMessage struct {
	Timestamp        int64        `json:"timestamp,omitempty"`
	Body             string       `json:"message"`
	ExpiresInSeconds int          `json:"expiresInSeconds"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

// Attachment covers both directions: inbound attachments carry
// storedFilename and content metadata, outbound sends reference the stored
// file by filename.
type Attachment struct {
	ContentType    string `json:"contentType,omitempty"`
	StoredFilename string `json:"storedFilename,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Caption        string `json:"caption,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	VoiceNote      bool   `json:"voiceNote,omitempty"`
}

// Name returns whichever filename field is populated.
func (a Attachment) Name() string {
	if a.StoredFilename != "" {
		return a.StoredFilename
	}
	return a.Filename
}

// Identity is a single entry from a get_identities response.
type Identity struct {
	TrustLevel   string `json:"trust_level"`
	Added        int64  `json:"added"`
	Fingerprint  string `json:"fingerprint"`
	SafetyNumber string `json:"safety_number"`
	Username     string `json:"username"`
}

// MostRecentIdentity returns the identity with the latest added timestamp,
// or false when the slice is empty.
func MostRecentIdentity(ids []Identity) (Identity, bool) {
	if len(ids) == 0 {
		return Identity{}, false
	}
	sorted := make([]Identity, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Added < sorted[j].Added })
	return sorted[len(sorted)-1], true
}

// ParseEvent decodes one newline-delimited frame. Callers must tolerate
// errors: the daemon occasionally emits unparseable lines, which the relay
// treats as ignorable.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// OutboundFrom converts an inbound message event into the outbound send
// form: same channel, body and attachments, with inbound attachment
// metadata mapped onto the fields signald expects when sending.
func OutboundFrom(ev Event) Request {
	out := Request{
		Type:     TypeSend,
		Username: ev.Data.Username,
	}
	if dm := ev.Data.DataMessage; dm != nil {
		out.MessageBody = dm.Body
		for _, a := range dm.Attachments {
			out.Attachments = append(out.Attachments, Attachment{
				Filename:  a.Name(),
				Width:     a.Width,
				Height:    a.Height,
				VoiceNote: a.VoiceNote,
			})
		}
	}
	return out
}

// MessageOf builds a plain outbound message from a channel to nobody in
// particular; callers fill in the recipient at send time.
func MessageOf(channelPhoneNumber, body string) Request {
	return Request{
		Type:        TypeSend,
		Username:    channelPhoneNumber,
		MessageBody: body,
	}
}
