package audit

import "regexp"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// El orden importa: "key" corre antes que "api_key" para normalizar el nombre.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)password["\s]*[:=]["\s]*[^"\s,}]+`), "password: [REDACTED]"},
	{regexp.MustCompile(`(?i)token["\s]*[:=]["\s]*[^"\s,}]+`), "token: [REDACTED]"},
	{regexp.MustCompile(`(?i)key["\s]*[:=]["\s]*[^"\s,}]+`), "key: [REDACTED]"},
	{regexp.MustCompile(`(?i)secret["\s]*[:=]["\s]*[^"\s,}]+`), "secret: [REDACTED]"},
	{regexp.MustCompile(`(?i)api[_-]?key["\s]*[:=]["\s]*[^"\s,}]+`), "api_key: [REDACTED]"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]+`), "bearer [REDACTED]"},
	{regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\s?\d{4}\b`), "[CARD_NUMBER_REDACTED]"},
}

// Redact reemplaza credenciales y números de tarjeta por marcadores.
// Aplicarla sobre su propia salida no cambia el resultado.
func Redact(text string) string {
	if text == "" {
		return text
	}
	for _, r := range redactions {
		text = r.pattern.ReplaceAllLiteralString(text, r.replacement)
	}
	return text
}
