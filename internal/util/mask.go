// Package util contiene helpers chicos sin dependencias de dominio.
package util

import "strings"

// MaskEmail ofusca un email para logs: "ada@example.com" → "a***@example.com".
// Los emails nunca se loguean completos.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskSecret deja visibles los primeros n caracteres de un secreto.
func MaskSecret(s string, n int) string {
	if len(s) <= n {
		return "***"
	}
	return s[:n] + "***"
}
