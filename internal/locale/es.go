package locale

var es = &Strings{
	code: "ES",

	broadcastPrefix: "TRANSMITIR",
	privatePrefix:   "PRIVADA",
	hotlinePrefix:   "LÍNEA DIRECTA #%d",

	hotlineDisabledSubscriber: "Lo sentimos, la línea directa no está habilitada en este canal. Los administradores no verán tu mensaje.",
	hotlineDisabledOther:      "Lo sentimos, la línea directa no está habilitada en este canal y no estás suscrito a él.",
	hotlineForwarded:          "Tu mensaje fue enviado a los admins de [%s].",

	deauthorization: `%[1]s ha sido eliminado de este canal porque su número de seguridad cambió.

Es casi seguro que esto se debe a que reinstaló Signal en un teléfono nuevo.

Sin embargo, existe una pequeña posibilidad de que un atacante haya comprometido su teléfono y esté intentando hacerse pasar por esa persona.

Consulta con %[1]s para asegurarte de que aún controla su teléfono y luego vuelve a autorizarlo con:

ADD %[1]s

Hasta entonces, no podrá enviar ni leer mensajes en este canal.`,

	rateLimitRetrying:  "El mensaje al canal %s fue limitado. Reintentando en %.0f segundos.",
	rateLimitAbandoned: "El mensaje al canal %s fue limitado. Se agotaron los reintentos; el mensaje fue descartado.",
}
