package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	PoolKey     ContextKey = "pool"
	TxKey       ContextKey = "tx"
	TenantIDKey ContextKey = "tenantID"
	UserIDKey   ContextKey = "userID"
	RoleKey     ContextKey = "role"
	LoggerKey   ContextKey = "logger"
	ParamsKey   ContextKey = "params"
)

// Validate is the shared validator instance. DTOs register against it via
// struct tags only; no custom validations are installed at init time.
var Validate = validator.New(validator.WithRequiredStructEnabled())
