//go:build !linux && !windows

package reactor

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentThreadID falls back to the goroutine id. A loop goroutine is locked
// to its thread, so the two identify the same owner.
func currentThreadID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(bytes.TrimPrefix(buf[:n], []byte("goroutine ")))[0]
	id, err := strconv.ParseInt(string(field), 10, 64)
	if err != nil {
		panic("reactor: cannot parse goroutine id: " + err.Error())
	}
	return id
}
