package validation

import (
	"regexp"
	"strings"
)

// Field name rules:
// - Start with [A-Za-z_], rest [A-Za-z0-9_].
// - Length 1..63 (límite de identificador de PostgreSQL; MySQL permite 64).
// - Sin espacios, comillas ni puntuación: el nombre viaja a DDL/DML y
//   la gramática es la primera barrera contra inyección por identificador.
//
// Examples valid: age, phone_number, _internal, Nivel2
// Examples invalid: 2fast, "quoted", drop table, año, a-b, ""
var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidFieldName retorna true si el nombre cumple la gramática de
// identificadores permitida para campos custom.
func ValidFieldName(name string) bool {
	return fieldNameRe.MatchString(name)
}

// numericCodeRe: exactamente seis dígitos decimales.
var numericCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// ValidNumericCode valida la forma de un código corto antes de cualquier
// lookup en la base.
func ValidNumericCode(code string) bool {
	return numericCodeRe.MatchString(code)
}

// NormalizeEmail aplica la normalización canónica de emails del sistema.
// La unicidad en DB se define sobre esta forma.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
