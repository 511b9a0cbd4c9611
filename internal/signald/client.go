package signald

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type ClientConfig struct {
	VerificationTimeout    time.Duration
	TrustRequestTimeout    time.Duration
	IdentityRequestTimeout time.Duration
	VersionTimeout         time.Duration
}

// Client issues daemon commands over the pool and resolves the ones that
// expect an asynchronous reply through the correlator.
type Client struct {
	pool       *Pool
	correlator *Correlator
	cfg        ClientConfig
	log        *slog.Logger
}

func NewClient(pool *Pool, correlator *Correlator, cfg ClientConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		pool:       pool,
		correlator: correlator,
		cfg:        cfg,
		log:        log.With("component", "signald.client"),
	}
}

// Submit writes one request on a pooled connection. The connection is held
// only for the write, never across a correlated await.
func (c *Client) Submit(ctx context.Context, req Request) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Release(conn)
	return conn.Write(req)
}

// Subscribe asks the daemon to deliver a channel's inbound traffic on this
// socket.
func (c *Client) Subscribe(ctx context.Context, channelPhoneNumber string) error {
	return c.Submit(ctx, Request{Type: TypeSubscribe, Username: channelPhoneNumber})
}

// Send delivers an outbound message to a single recipient.
func (c *Client) Send(ctx context.Context, recipient string, msg Request) error {
	msg.Type = TypeSend
	msg.RecipientNumber = recipient
	return c.Submit(ctx, msg)
}

// Broadcast sends the same message to each recipient. Pacing is the
// messenger's concern; this is a plain fan-out.
func (c *Client) Broadcast(ctx context.Context, recipients []string, msg Request) error {
	var errs []error
	for _, r := range recipients {
		if err := c.Send(ctx, r, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", r, err))
		}
	}
	return errors.Join(errs...)
}

// Register starts phone number registration with the Signal service.
func (c *Client) Register(ctx context.Context, phoneNumber string) error {
	return c.Submit(ctx, Request{Type: TypeRegister, Username: phoneNumber})
}

// Verify submits an SMS verification code for a registering number and
// resolves when the daemon reports the outcome. The registration happens
// before the write so a fast reply cannot slip past the correlator.
func (c *Client) Verify(ctx context.Context, phoneNumber, code string) error {
	pending := c.correlator.Register(func(ev Event) bool {
		if ev.Type == TypeVerificationSuccess && ev.Data.Username == phoneNumber {
			return true
		}
		if ev.Type == TypeError && ev.Data.Request != nil && ev.Data.Request.Username == phoneNumber {
			return true
		}
		return false
	})
	defer pending.Cancel()

	if err := c.Submit(ctx, Request{Type: TypeVerify, Username: phoneNumber, Code: code}); err != nil {
		return err
	}

	ev, err := pending.Wait(ctx, c.cfg.VerificationTimeout)
	if err != nil {
		return fmt.Errorf("verification for %s: %w", phoneNumber, err)
	}
	if ev.Type == TypeError {
		return fmt.Errorf("verification failed for %s: %s", phoneNumber, ev.Data.Message)
	}
	return nil
}

// FetchIdentities returns the known identities of a member as seen by a
// channel. The registration happens before the write so a fast reply cannot
// slip past the correlator.
func (c *Client) FetchIdentities(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) ([]Identity, error) {
	pending := c.correlator.Register(identitiesOf(memberPhoneNumber))
	defer pending.Cancel()

	err := c.Submit(ctx, Request{
		Type:            TypeGetIdentities,
		Username:        channelPhoneNumber,
		RecipientNumber: memberPhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	ev, err := pending.Wait(ctx, c.cfg.IdentityRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("identities of %s: %w", memberPhoneNumber, err)
	}
	return ev.Data.Identities, nil
}

func identitiesOf(memberPhoneNumber string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Type == TypeIdentities &&
			len(ev.Data.Identities) > 0 &&
			ev.Data.Identities[0].Username == memberPhoneNumber
	}
}

// Trust accepts a member's most recent safety number on behalf of a channel.
// Already-trusted identities are a no-op: asking signald to trust a trusted
// number makes it throw. After the trust write the identity is re-fetched
// and must come back TRUSTED_VERIFIED. The whole fetch/trust/re-fetch round
// trip is bounded by TrustRequestTimeout.
func (c *Client) Trust(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TrustRequestTimeout)
	defer cancel()

	ids, err := c.FetchIdentities(ctx, channelPhoneNumber, memberPhoneNumber)
	if err != nil {
		return err
	}
	id, ok := MostRecentIdentity(ids)
	if !ok {
		return fmt.Errorf("no identities found for %s on %s", memberPhoneNumber, channelPhoneNumber)
	}
	if id.TrustLevel != TrustLevelUntrusted {
		c.log.Info("no new safety number to trust", "member", memberPhoneNumber)
		return nil
	}

	err = c.Submit(ctx, Request{
		Type:            TypeTrust,
		Username:        channelPhoneNumber,
		RecipientNumber: memberPhoneNumber,
		Fingerprint:     id.Fingerprint,
	})
	if err != nil {
		return err
	}

	ids, err = c.FetchIdentities(ctx, channelPhoneNumber, memberPhoneNumber)
	if err != nil {
		return err
	}
	id, ok = MostRecentIdentity(ids)
	if !ok || id.TrustLevel != TrustLevelTrustedVerified {
		return fmt.Errorf("failed to trust new safety number for %s on %s", memberPhoneNumber, channelPhoneNumber)
	}
	return nil
}

// SetExpiration sets the disappearing-message timer for a 1:1 conversation.
func (c *Client) SetExpiration(ctx context.Context, channelPhoneNumber, memberPhoneNumber string, expiresInSeconds int) error {
	return c.Submit(ctx, Request{
		Type:             TypeSetExpiration,
		Username:         channelPhoneNumber,
		RecipientNumber:  memberPhoneNumber,
		ExpiresInSeconds: expiresInSeconds,
	})
}

// Version asks the daemon for its version string; doubles as the liveness
// probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	pending := c.correlator.Register(func(ev Event) bool { return ev.Type == TypeVersion })
	defer pending.Cancel()

	if err := c.Submit(ctx, Request{Type: TypeVersion}); err != nil {
		return "", err
	}
	ev, err := pending.Wait(ctx, c.cfg.VersionTimeout)
	if err != nil {
		return "", err
	}
	return ev.Data.Version, nil
}
