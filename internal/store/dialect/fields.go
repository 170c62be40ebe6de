package dialect

import (
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// MaxCustomFields acota la cantidad de campos custom por tabla para que
// el DDL/DML generado no crezca patológicamente.
const MaxCustomFields = 64

// systemColumns son las columnas fijas de la tabla de usuarios. Un
// descriptor no puede colisionar con ellas; password_hash en particular
// es nombre reservado.
var systemColumns = map[string]struct{}{
	"id":             {},
	"email":          {},
	"password_hash":  {},
	"first_name":     {},
	"last_name":      {},
	"email_verified": {},
	"is_active":      {},
	"created_at":     {},
	"updated_at":     {},
}

// IsSystemColumn indica si el nombre pertenece al esquema fijo.
func IsSystemColumn(name string) bool {
	_, ok := systemColumns[strings.ToLower(name)]
	return ok
}

// ValidateField valida un descriptor aislado: gramática del nombre,
// nombre no reservado y tipo conocido. No toca la base.
func ValidateField(f repository.FieldDescriptor) error {
	if !validation.ValidFieldName(f.Name) {
		return repository.Validationf(f.Name, "field name must match [A-Za-z_][A-Za-z0-9_]*")
	}
	if IsSystemColumn(f.Name) {
		return repository.Validationf(f.Name, "field name collides with a system column")
	}
	// El tipo se valida contra la tabla de reglas; postgres y mysql
	// comparten el vocabulario lógico, alcanza con chequear uno.
	if _, _, err := resolveColumnType("postgres", f.Type); err != nil {
		return err
	}
	return nil
}

// ValidateFields valida el set completo de descriptores antes de generar
// DDL: cada campo individual, colisiones entre sí y el límite de
// cantidad.
func ValidateFields(fields []repository.FieldDescriptor) error {
	if len(fields) > MaxCustomFields {
		return repository.Validationf("", "too many custom fields: %d (max %d)", len(fields), MaxCustomFields)
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if err := ValidateField(f); err != nil {
			return err
		}
		key := strings.ToLower(f.Name)
		if _, dup := seen[key]; dup {
			return repository.Validationf(f.Name, "duplicate field name")
		}
		seen[key] = struct{}{}
	}
	return nil
}
