package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"cyberia/assets"
)

const SETTINGS_VERSION = 1

const settingsFile = "settings.json"

type settings struct {
	Version int

	ServerURL     string
	AssetsURL     string
	ClientName    string
	ClientVersion string

	// ForceDevUI shows debug overlays even when the server does not ask.
	ForceDevUI bool

	MaxLayerCacheSize   int
	MaxAtlasCacheSize   int
	MaxTextureCacheSize int

	FetchTimeoutMS   int
	FetchConcurrency int
	FetchRate        float64
	FetchBurst       int

	WindowWidth  int
	WindowHeight int
	HUDFontSize  float64
	ShowHUD      bool

	Notifications bool
}

var gsdef settings = settings{
	Version: SETTINGS_VERSION,

	ServerURL:     "ws://localhost:8081/ws",
	AssetsURL:     "http://localhost:4005",
	ClientName:    "cyberia-go",
	ClientVersion: "1.0.0",

	FetchTimeoutMS:   10000,
	FetchConcurrency: 8,
	FetchRate:        50,
	FetchBurst:       16,

	WindowWidth:  1280,
	WindowHeight: 720,
	HUDFontSize:  14,
	ShowHUD:      true,

	Notifications: true,
}

var gs settings = gsdef

// settingsLoaded reports whether settings were successfully loaded from disk.
var settingsLoaded bool

// dataDirPath holds the directory for settings. On macOS it is
// under the user's Application Support; elsewhere it sits next to the
// executable.
var dataDirPath = func() string {
	if runtime.GOOS == "darwin" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "Cyberia")
		}
	}
	if exe, err := os.Executable(); err == nil {
		if dir, err := filepath.Abs(filepath.Dir(exe)); err == nil {
			return filepath.Join(dir, "data")
		}
	}
	return "data"
}()

func loadSettings() bool {
	path := filepath.Join(dataDirPath, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		gs = gsdef
		settingsLoaded = false
		return false
	}

	tmp := gsdef
	if err := json.Unmarshal(data, &tmp); err != nil {
		logWarn("load settings: %v", err)
		gs = gsdef
		settingsLoaded = false
		return false
	}
	if tmp.Version != SETTINGS_VERSION {
		gs = gsdef
		settingsLoaded = false
		return false
	}
	gs = tmp
	gs.clamp()
	settingsLoaded = true
	return true
}

func saveSettings() {
	data, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.MkdirAll(dataDirPath, 0755); err != nil {
		logError("save settings: %v", err)
		return
	}
	path := filepath.Join(dataDirPath, settingsFile)
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		logError("save settings: %v", err)
	}
}

// clamp repairs values a hand-edited file may have broken.
func (s *settings) clamp() {
	if s.FetchTimeoutMS <= 0 {
		s.FetchTimeoutMS = gsdef.FetchTimeoutMS
	}
	if s.FetchConcurrency <= 0 {
		s.FetchConcurrency = gsdef.FetchConcurrency
	}
	if s.WindowWidth < 320 {
		s.WindowWidth = gsdef.WindowWidth
	}
	if s.WindowHeight < 240 {
		s.WindowHeight = gsdef.WindowHeight
	}
	if s.HUDFontSize <= 0 {
		s.HUDFontSize = gsdef.HUDFontSize
	}
}

func (s settings) fetcherConfig() assets.FetcherConfig {
	cfg := assets.DefaultFetcherConfig()
	cfg.Timeout = time.Duration(s.FetchTimeoutMS) * time.Millisecond
	cfg.Concurrency = s.FetchConcurrency
	if s.FetchRate > 0 {
		cfg.RequestsPerSecond = s.FetchRate
	}
	if s.FetchBurst > 0 {
		cfg.Burst = s.FetchBurst
	}
	cfg.UserAgent = s.ClientName + "/" + s.ClientVersion
	return cfg
}

func (s settings) cacheConfig() assets.Config {
	return assets.Config{
		MaxLayerCacheSize:   s.MaxLayerCacheSize,
		MaxAtlasCacheSize:   s.MaxAtlasCacheSize,
		MaxTextureCacheSize: s.MaxTextureCacheSize,
	}
}
