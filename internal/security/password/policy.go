package password

import "unicode"

// Razones de rechazo de una password. Son los tokens que el servicio
// concatena en su error de password débil; estables para que un caller
// pueda mapearlos a mensajes de UI.
const (
	ReasonTooShort      = "too_short"
	ReasonMissingUpper  = "missing_upper"
	ReasonMissingLower  = "missing_lower"
	ReasonMissingDigit  = "missing_digit"
	ReasonMissingSymbol = "missing_symbol"
)

// Policy define los requisitos mínimos de una password. El largo se
// mide en runes: una password con acentos no cuenta bytes de más.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// classes resume qué clases de caracteres aparecen en la password.
type classes struct {
	upper, lower, digit, symbol bool
	runes                       int
}

func classify(s string) classes {
	var c classes
	for _, r := range s {
		c.runes++
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			c.symbol = true
		}
	}
	return c
}

// Validate evalúa la password contra la política. Retorna todas las
// razones de rechazo juntas, no solo la primera: el usuario corrige de
// una vez en lugar de descubrirlas de a una.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	c := classify(s)
	if c.runes < p.MinLength {
		reasons = append(reasons, ReasonTooShort)
	}
	for _, req := range []struct {
		required bool
		present  bool
		reason   string
	}{
		{p.RequireUpper, c.upper, ReasonMissingUpper},
		{p.RequireLower, c.lower, ReasonMissingLower},
		{p.RequireDigit, c.digit, ReasonMissingDigit},
		{p.RequireSymbol, c.symbol, ReasonMissingSymbol},
	} {
		if req.required && !req.present {
			reasons = append(reasons, req.reason)
		}
	}
	return len(reasons) == 0, reasons
}
