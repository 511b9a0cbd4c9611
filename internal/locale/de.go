package locale

var de = &Strings{
	code: "DE",

	broadcastPrefix: "RUNDBRIEF",
	privatePrefix:   "PRIVAT",
	hotlinePrefix:   "HOTLINE #%d",

	hotlineDisabledSubscriber: "Die Hotline ist auf diesem Kanal leider nicht aktiviert. Admins sehen deine Nachricht nicht.",
	hotlineDisabledOther:      "Die Hotline ist auf diesem Kanal leider nicht aktiviert, und du bist nicht angemeldet.",
	hotlineForwarded:          "Deine Nachricht wurde an die Admins von [%s] weitergeleitet.",

	deauthorization: `%[1]s wurde von diesem Kanal entfernt, weil sich die Sicherheitsnummer geändert hat.

Das liegt mit ziemlicher Sicherheit daran, dass Signal auf einem neuen Telefon installiert wurde.

Es besteht jedoch eine geringe Chance, dass das Telefon kompromittiert wurde und sich jemand als diese Person ausgibt.

Vergewissere dich bei %[1]s, dass das Telefon noch unter eigener Kontrolle ist, und autorisiere die Person dann erneut mit:

ADD %[1]s

Bis dahin kann sie auf diesem Kanal weder Nachrichten senden noch lesen.`,

	rateLimitRetrying:  "Die Nachricht an Kanal %s wurde gedrosselt. Neuer Versuch in %.0f Sekunden.",
	rateLimitAbandoned: "Die Nachricht an Kanal %s wurde gedrosselt. Alle Versuche aufgebraucht, die Nachricht wurde verworfen.",
}
