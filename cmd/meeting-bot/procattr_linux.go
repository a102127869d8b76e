package main

import "syscall"

// childProcAttr kills children when the supervisor dies unexpectedly.
func childProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
