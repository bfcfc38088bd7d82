package procgroup

import (
	"os/exec"
	"syscall"
	"time"
)

// Terminate attempts to gracefully stop a process group. It sends
// SIGTERM, waits for the process to exit via the provided wait channel,
// and if it does not exit within grace, sends SIGKILL. The waitCh error
// is always consumed and returned. Safe to call on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = Kill(cmd, syscall.SIGTERM)

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		_ = Kill(cmd, syscall.SIGKILL)
		// SIGKILL frees a blocked process; drain the wait result.
		return <-waitCh
	}
}
