//go:build windows

package reactor

import "golang.org/x/sys/windows"

// submitIOCPWakeup posts a zero-byte, zero-key completion with a nil
// Overlapped to iocp. pollOnce distinguishes this from a real I/O
// completion by its nil overlapped pointer, which is never the case for a
// genuine operation (EventData.Overlapped is always taken by address).
func submitIOCPWakeup(iocp windows.Handle) error {
	return windows.PostQueuedCompletionStatus(iocp, 0, 0, nil)
}
