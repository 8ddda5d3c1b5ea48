package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/natefinch/lumberjack.v2"
)

var isWASM = (runtime.GOOS == "js" || runtime.GOARCH == "wasm")

const logDir = "logs"

var (
	errorLogger *log.Logger
	debugLogger *log.Logger
	logFile     *lumberjack.Logger

	// debugPacketDumpLen limits how many bytes of a frame are logged.
	// A value of 0 dumps the entire frame.
	debugPacketDumpLen = 256

	// silent keeps warnings and errors off the HUD.
	silent bool
)

func setupLogging(debug bool) {
	var out io.Writer = os.Stdout
	if !isWASM {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("could not create log directory: %v", err)
		} else {
			logFile = &lumberjack.Logger{
				Filename:   filepath.Join(logDir, "cyberia.log"),
				MaxSize:    10, // megabytes
				MaxBackups: 5,
				MaxAge:     14, // days
			}
			out = io.MultiWriter(os.Stdout, logFile)
		}
	}
	errorLogger = log.New(out, "", log.LstdFlags)
	log.SetOutput(out)

	setDebugLogging(debug)
}

func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func logError(format string, v ...interface{}) {
	if errorLogger != nil {
		errorLogger.Printf(format, v...)
	}
	if !silent {
		consoleMessage(fmt.Sprintf(format, v...))
	}
}

func logWarn(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if errorLogger != nil {
		errorLogger.Printf("warning: %s", msg)
	}
	if !silent {
		consoleMessage(fmt.Sprintf("warning: %s", msg))
	}
}

func logDebug(format string, v ...interface{}) {
	if debugLogger != nil {
		debugLogger.Printf(format, v...)
	}
}

func logDebugPacket(prefix string, data []byte) {
	if debugLogger == nil {
		return
	}
	n := len(data)
	dump := data
	if debugPacketDumpLen > 0 && n > debugPacketDumpLen {
		dump = data[:debugPacketDumpLen]
	}
	debugLogger.Printf("%s len=%d payload=%q", prefix, n, dump)
}

// logDebugValue dumps v with its types.
func logDebugValue(prefix string, v interface{}) {
	if debugLogger == nil {
		return
	}
	debugLogger.Printf("%s\n%s", prefix, spew.Sdump(v))
}

func setDebugLogging(enabled bool) {
	if !enabled {
		debugLogger = nil
		return
	}
	out := io.Writer(os.Stdout)
	if logFile != nil {
		out = io.MultiWriter(os.Stdout, logFile)
	}
	debugLogger = log.New(out, "debug: ", log.LstdFlags|log.Lmicroseconds)
}
