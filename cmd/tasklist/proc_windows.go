//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detachedProcess keeps the daemon alive after the console that started it
// closes.
const detachedProcess = 0x00000008

func configureDaemonProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: detachedProcess}
}
