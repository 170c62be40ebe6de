package logger

import (
	"time"

	"go.uber.org/zap"
)

// Aliases de campos para no importar zap en cada call site.

func String(key, val string) zap.Field          { return zap.String(key, val) }
func Int(key string, val int) zap.Field         { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field     { return zap.Int64(key, val) }
func Bool(key string, val bool) zap.Field       { return zap.Bool(key, val) }
func Duration(key string, d time.Duration) zap.Field { return zap.Duration(key, d) }
func Err(err error) zap.Field                   { return zap.Error(err) }
func Any(key string, val any) zap.Field         { return zap.Any(key, val) }
