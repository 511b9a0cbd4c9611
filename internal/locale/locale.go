// Package locale holds the user-facing strings the relay core itself emits:
// message headers, hotline notices, deauthorization alerts, and operator
// notifications. Each member receives text in their own preferred language.
package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// Strings is one language's message table.
type Strings struct {
	code string

	broadcastPrefix string
	privatePrefix   string
	hotlinePrefix   string

	hotlineDisabledSubscriber string
	hotlineDisabledOther      string
	hotlineForwarded          string

	deauthorization string

	rateLimitRetrying  string
	rateLimitAbandoned string
}

var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
}

var matcher = language.NewMatcher(supported)

var tables = []*Strings{en, es, fr, de}

var byCode = map[string]*Strings{
	"EN": en,
	"ES": es,
	"FR": fr,
	"DE": de,
}

// In returns the message table for a member's language. Membership rows
// store bare codes ("ES"); anything else is matched as a BCP 47 tag with
// English as the fallback.
func In(lang string) *Strings {
	if s, ok := byCode[lang]; ok {
		return s
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return en
	}
	_, i, _ := matcher.Match(tag)
	return tables[i]
}

// Code returns the table's two-letter language code.
func (s *Strings) Code() string { return s.code }

func (s *Strings) BroadcastPrefix() string { return s.broadcastPrefix }

func (s *Strings) PrivatePrefix() string { return s.privatePrefix }

// HotlinePrefix tags a forwarded hotline message with its reply id so
// admins can answer anonymously.
func (s *Strings) HotlinePrefix(replyID int64) string {
	return fmt.Sprintf(s.hotlinePrefix, replyID)
}

func (s *Strings) HotlineDisabled(isSubscriber bool) string {
	if isSubscriber {
		return s.hotlineDisabledSubscriber
	}
	return s.hotlineDisabledOther
}

func (s *Strings) HotlineForwarded(channelName string) string {
	return fmt.Sprintf(s.hotlineForwarded, channelName)
}

func (s *Strings) Deauthorization(memberPhoneNumber string) string {
	return fmt.Sprintf(s.deauthorization, memberPhoneNumber)
}

func (s *Strings) RateLimitRetrying(channelPhoneNumber string, retryIn time.Duration) string {
	return fmt.Sprintf(s.rateLimitRetrying, channelPhoneNumber, retryIn.Seconds())
}

func (s *Strings) RateLimitAbandoned(channelPhoneNumber string) string {
	return fmt.Sprintf(s.rateLimitAbandoned, channelPhoneNumber)
}
