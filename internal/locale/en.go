package locale

var en = &Strings{
	code: "EN",

	broadcastPrefix: "BROADCAST",
	privatePrefix:   "PRIVATE",
	hotlinePrefix:   "HOTLINE #%d",

	hotlineDisabledSubscriber: "Sorry, the hotline is not enabled on this channel. Admins will not see your message.",
	hotlineDisabledOther:      "Sorry, the hotline is not enabled on this channel, and you are not subscribed to it.",
	hotlineForwarded:          "Your message was forwarded to the admins of [%s].",

	deauthorization: `%[1]s has been removed from this channel because their safety number changed.

This is almost certainly because they reinstalled Signal on a new phone.

However, there is a small chance an attacker has compromised their phone and is trying to impersonate them.

Check with %[1]s to make sure they still control their phone, then reauthorize them with:

ADD %[1]s

Until then, they cannot send or read messages on this channel.`,

	rateLimitRetrying:  "Message to channel %s was rate limited. Retrying in %.0f seconds.",
	rateLimitAbandoned: "Message to channel %s was rate limited. Retries exhausted; the message was dropped.",
}
