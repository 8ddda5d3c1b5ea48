package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"
)

func TestExitStartupClosesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cyberia.log")
	logFile = &lumberjack.Logger{Filename: path}
	prev := errorLogger
	errorLogger = nil
	t.Cleanup(func() {
		errorLogger = prev
		logFile = nil
	})
	if _, err := logFile.Write([]byte("booting\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	code := -1
	exitStartup(errors.New("no server url"), func(c int) { code = c })
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if logFile != nil {
		t.Fatalf("log file left open")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "booting") {
		t.Fatalf("log = %q", data)
	}
}
