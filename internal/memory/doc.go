// Package memory sizes the Go heap for containers and defers flush passes
// under memory pressure.
//
// Call [ConfigureFromEnv] early in main. It honors GOMEMLIMIT when set and
// otherwise derives it from MEMORY_LIMIT (bytes) times MEMORY_RATIO
// (default 0.85):
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// A [Monitor] samples the heap on an interval. Once usage reaches the
// critical water mark it reports IsPaused until usage falls below the high
// water mark; the watcher skips passes while paused and keeps its pending
// items for later.
package memory
