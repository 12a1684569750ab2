package executor

import (
	"runtime/debug"

	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

// safeGo runs fn in a goroutine with panic recovery. Panics are logged with
// a stack trace and passed to onPanic when it is non-nil.
func safeGo(l logger.Logger, context string, onPanic func(r interface{}), fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if l != nil {
					l.Error("PANIC [%s]: %v\n%s", context, r, debug.Stack())
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
