package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// typeRule mapea un tipo lógico a los tipos concretos de cada motor.
//
// La tabla es sensible al orden: el match es por substring sobre el tipo
// normalizado, así que el nombre más específico va primero (BIGINT antes
// que INT, DOUBLE antes que FLOAT, DATETIME y TIMESTAMP antes que DATE).
// Reordenarla rompe la clasificación por colisión de prefijos.
type typeRule struct {
	match string
	pg    string
	mysql string
}

var typeRules = []typeRule{
	{"BIGINT", "BIGINT", "BIGINT"},
	{"SMALLINT", "SMALLINT", "SMALLINT"},
	{"INT", "INTEGER", "INT"}, // también matchea INTEGER
	{"DOUBLE", "DOUBLE PRECISION", "DOUBLE"},
	{"FLOAT", "REAL", "FLOAT"},
	{"DECIMAL", "NUMERIC(18,6)", "DECIMAL(18,6)"},
	{"NUMERIC", "NUMERIC(18,6)", "DECIMAL(18,6)"},
	{"BOOL", "BOOLEAN", "TINYINT(1)"}, // matchea BOOLEAN
	{"DATETIME", "TIMESTAMPTZ", "DATETIME"},
	{"TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP"},
	{"DATE", "DATE", "DATE"},
	{"TEXT", "TEXT", "TEXT"},
	{"JSON", "JSONB", "JSON"},
	{"UUID", "UUID", "CHAR(36)"},
	{"STRING", "VARCHAR(255)", "VARCHAR(255)"},
	{"VARCHAR", "VARCHAR(255)", "VARCHAR(255)"},
}

var enumRe = regexp.MustCompile(`(?i)^ENUM\s*\((.+)\)$`)

// valores de enum: alfanumérico + guiones/underscore/espacio. El valor
// viaja dentro del DDL, así que la gramática es estricta.
var enumValueRe = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// resolveColumnType mapea un tipo lógico al tipo de un motor.
// engine es "postgres" o "mysql". note queda no-vacío cuando el motor no
// soporta el tipo nativamente y se aplicó un fallback acotado.
func resolveColumnType(engine, logical string) (sqlType, note string, err error) {
	norm := strings.ToUpper(strings.TrimSpace(logical))
	if norm == "" {
		return "", "", repository.Validationf("", "empty field type")
	}

	if m := enumRe.FindStringSubmatch(norm); m != nil {
		values, perr := parseEnumValues(m[1])
		if perr != nil {
			return "", "", perr
		}
		if engine == "mysql" {
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = "'" + v + "'"
			}
			return "ENUM(" + strings.Join(quoted, ",") + ")", "", nil
		}
		// Postgres: fallback a string acotado; los valores permitidos se
		// validan a nivel aplicación.
		return "VARCHAR(255)", "enum emulated as VARCHAR(255); allowed values enforced in application: " + strings.Join(values, ","), nil
	}

	for _, r := range typeRules {
		if strings.Contains(norm, r.match) {
			if engine == "mysql" {
				return r.mysql, "", nil
			}
			return r.pg, "", nil
		}
	}
	return "", "", repository.Validationf("", "unknown field type %q", logical)
}

func parseEnumValues(inner string) ([]string, error) {
	parts := strings.Split(inner, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.Trim(strings.TrimSpace(p), `'"`)
		if v == "" {
			continue
		}
		if !enumValueRe.MatchString(v) {
			return nil, repository.Validationf("", "invalid enum value %q", v)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, repository.Validationf("", "enum type declares no values")
	}
	return values, nil
}

// renderDefault compila un default de descriptor a un literal DDL.
// Solo se aceptan escalares; los strings escapan comillas simples.
func renderDefault(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", fmt.Errorf("nil default")
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	case time.Time:
		return "'" + t.UTC().Format("2006-01-02 15:04:05") + "'", nil
	default:
		return "", fmt.Errorf("unsupported default type %T", v)
	}
}

// rebindDollar traduce `?` canónico a `$1..$n` (Postgres), respetando
// literales entre comillas simples.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case c == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
