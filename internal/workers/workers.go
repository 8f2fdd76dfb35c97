package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Environment overrides.
const (
	// VipsConcurrencyEnv overrides the libvips thread count.
	VipsConcurrencyEnv = "VIPS_CONCURRENCY"
	// DBConnectionsEnv overrides the SQLite connection pool size.
	DBConnectionsEnv = "DB_MAX_CONNECTIONS"
)

// Count sizes a pool from GOMAXPROCS, which follows the container CPU limit.
// multiplier scales the CPU count and limit caps the result (0 for none).
// A positive integer in the env variable wins over the computed value but is
// still capped by limit.
func Count(env string, multiplier float64, limit int) int {
	if env != "" {
		if override := os.Getenv(env); override != "" {
			if count, err := strconv.Atoi(override); err == nil && count > 0 {
				return capAt(count, limit)
			}
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	return capAt(n, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns one worker per CPU.
func ForCPU(env string, limit int) int {
	return Count(env, 1.0, limit)
}

// ForIO returns two workers per CPU.
func ForIO(env string, limit int) int {
	return Count(env, 2.0, limit)
}
