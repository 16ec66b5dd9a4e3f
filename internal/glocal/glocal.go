// Package glocal provides goroutine-local storage for the derived-property
// engine's read-recording stack and the ambient SubjectChangeContext
// override. Neither the teacher nor any other example in the corpus
// imports a goroutine-local-storage library, so this is built on the
// standard library's runtime.Stack rather than a third-party dependency —
// see DESIGN.md's §F entry.
package glocal

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var store sync.Map // goroutine id (uint64) -> *sync.Map (string key -> any)

// goroutineID extracts the numeric id out of the header line of
// runtime.Stack's output ("goroutine 18 [running]:..."). The id never
// changes for the lifetime of a goroutine, but it is not cached: every
// slot lookup pays for one runtime.Stack call.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		// Should not happen for a well-formed runtime.Stack header; fall
		// back to a shared slot rather than panicking on logging-adjacent
		// infrastructure.
		return 0
	}
	return id
}

func slot() *sync.Map {
	gid := goroutineID()
	v, ok := store.Load(gid)
	if ok {
		return v.(*sync.Map)
	}
	m := &sync.Map{}
	actual, _ := store.LoadOrStore(gid, m)
	return actual.(*sync.Map)
}

// Get returns the value stored under key for the calling goroutine.
func Get(key string) (any, bool) {
	return slot().Load(key)
}

// Set stores value under key for the calling goroutine.
func Set(key string, value any) {
	slot().Store(key, value)
}

// Delete removes key for the calling goroutine.
func Delete(key string) {
	slot().Delete(key)
}

// Clear drops the calling goroutine's entire local slot. Call when a
// goroutine that used glocal is about to exit and its id might be reused
// by a future goroutine whose stale state would otherwise leak through.
func Clear() {
	store.Delete(goroutineID())
}
