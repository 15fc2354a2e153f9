package utils

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GoroutineInfo identifies the goroutine serving a call
type GoroutineInfo struct {
	GoroutineID  int64
	FunctionName string
}

func (g GoroutineInfo) String() string {
	return fmt.Sprintf("G%d:%s", g.GoroutineID, g.FunctionName)
}

// CurrentGoroutineID parses the id out of the "goroutine 123 [running]:" stack header.
// Returns 0 when the header cannot be parsed.
func CurrentGoroutineID() int64 {
	buf := make([]byte, 32)
	buf = buf[:runtime.Stack(buf, false)]

	buf, ok := bytes.CutPrefix(buf, goroutinePrefix)
	if !ok {
		return 0
	}
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(buf[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// callerName returns the function skip frames above callerName itself
func callerName(skip int) string {
	pc := make([]uintptr, 1)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return "unknown"
	}
	frame, _ := runtime.CallersFrames(pc[:n]).Next()
	if frame.Function == "" {
		return "unknown"
	}
	return frame.Function
}

// GetGoroutineInfo describes the current goroutine and the function that asked
func GetGoroutineInfo() GoroutineInfo {
	return GoroutineInfo{
		GoroutineID:  CurrentGoroutineID(),
		FunctionName: callerName(1),
	}
}
