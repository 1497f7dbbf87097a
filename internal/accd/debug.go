//go:build abddebug

package accd

const debugChecks = true
