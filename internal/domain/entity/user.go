package entity

import "time"

// Roles de operador.
const (
	RoleSystemManager = "system_manager" // puede reintentar fiscalizaciones y sincronizar mapeos
	RoleOperator      = "operator"       // solo lectura de firmas y logs
)

// User operador del puente fiscal.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
