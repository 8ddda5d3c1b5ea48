package main

import (
	"os"
	"testing"
)

// TestMain points dataDirPath at a scratch directory and keeps log output
// off the HUD console.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cyberia-test")
	if err != nil {
		panic(err)
	}
	dataDirPath = dir
	silent = true
	gsdef.Notifications = false
	gs = gsdef
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}
