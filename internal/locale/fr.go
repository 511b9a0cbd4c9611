package locale

var fr = &Strings{
	code: "FR",

	broadcastPrefix: "DIFFUSER",
	privatePrefix:   "PRIVÉ",
	hotlinePrefix:   "HOTLINE #%d",

	hotlineDisabledSubscriber: "Désolé, la hotline n'est pas activée sur ce canal. Les admins ne verront pas votre message.",
	hotlineDisabledOther:      "Désolé, la hotline n'est pas activée sur ce canal et vous n'y êtes pas abonné·e.",
	hotlineForwarded:          "Votre message a été transmis aux admins de [%s].",

	deauthorization: `%[1]s a été retiré·e de ce canal parce que son numéro de sécurité a changé.

C'est presque certainement parce que Signal a été réinstallé sur un nouveau téléphone.

Il existe cependant une petite chance qu'un·e attaquant·e ait compromis son téléphone et tente de se faire passer pour cette personne.

Vérifiez avec %[1]s que le téléphone est toujours sous son contrôle, puis réautorisez-le·la avec :

ADD %[1]s

D'ici là, il ou elle ne pourra ni envoyer ni lire de messages sur ce canal.`,

	rateLimitRetrying:  "Le message vers le canal %s a été limité. Nouvel essai dans %.0f secondes.",
	rateLimitAbandoned: "Le message vers le canal %s a été limité. Essais épuisés, le message a été abandonné.",
}
