package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	var (
		serverURL  string
		assetsURL  string
		replayPath string
		recordPath string
		doDebug    bool
		devUI      bool
		envFile    string
	)
	flag.StringVar(&serverURL, "server", "", "world server WebSocket URL (overrides settings)")
	flag.StringVar(&assetsURL, "assets", "", "asset API base URL (overrides settings)")
	flag.StringVar(&replayPath, "replay", "", "play back a capture instead of connecting")
	flag.StringVar(&recordPath, "record", "", "write inbound frames to a capture file")
	flag.BoolVar(&doDebug, "debug", false, "verbose/debug logging")
	flag.BoolVar(&devUI, "devui", false, "force debug overlays")
	flag.StringVar(&envFile, "env", ".env", "file with CYBERIA_EMAIL and CYBERIA_PASSWORD")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("load %s: %v", envFile, err)
	}

	loadSettings()
	if serverURL != "" {
		gs.ServerURL = serverURL
	}
	if assetsURL != "" {
		gs.AssetsURL = assetsURL
	}
	if devUI {
		gs.ForceDevUI = true
	}

	setupLogging(doDebug)
	defer closeLogging()

	if err := initFont(); err != nil {
		log.Fatalf("font: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	email, password := credentialsFromEnv()
	app, err := newApp(ctx, appOptions{
		ReplayPath: replayPath,
		RecordPath: recordPath,
		Email:      email,
		Password:   password,
	})
	if err != nil {
		exitStartup(err, os.Exit)
	}

	if err := runGame(ctx, app); err != nil {
		logError("ebiten: %v", err)
	}
	app.Close()
	saveSettings()
}

// exitStartup logs err, closes the log file and exits. Deferred calls do not
// run under os.Exit.
func exitStartup(err error, exit func(int)) {
	logError("startup: %v", err)
	closeLogging()
	exit(1)
}
