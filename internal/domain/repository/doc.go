// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// motor relacional subyacente (PostgreSQL o MySQL).
//
// Las implementaciones concretas viven en internal/store, construidas
// sobre el adapter de dialecto (internal/store/dialect).
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
//   - Nunca se persiste un secreto en claro: refresh tokens y artefactos
//     de email se guardan como digest SHA-256
package repository
