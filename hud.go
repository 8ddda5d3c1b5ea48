package main

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/hako/durafmt"
	"golang.org/x/image/font/gofont/goregular"

	"cyberia/assets"
	"cyberia/render"
	"cyberia/transport"
)

var (
	hudFace     text.Face
	shortUnits  durafmt.Units
	hudTextCol  = color.RGBA{230, 230, 230, 255}
	hudErrorCol = color.RGBA{255, 96, 96, 255}
	hudPanelCol = color.RGBA{0, 0, 0, 140}
)

func init() {
	shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")
}

func initFont() error {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	hudFace = &text.GoTextFace{Source: src, Size: gs.HUDFontSize}
	return nil
}

const (
	consoleMaxLines = 6
	consoleLifetime = 8 * time.Second
)

type consoleLine struct {
	text string
	at   time.Time
}

var (
	consoleMu    sync.Mutex
	consoleLines []consoleLine
)

// consoleMessage queues msg for the HUD console.
func consoleMessage(msg string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	consoleLines = append(consoleLines, consoleLine{text: msg, at: time.Now()})
	if n := len(consoleLines); n > consoleMaxLines {
		consoleLines = append(consoleLines[:0], consoleLines[n-consoleMaxLines:]...)
	}
}

// recentConsole returns console lines younger than consoleLifetime.
func recentConsole(now time.Time) []string {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	keep := consoleLines[:0]
	for _, l := range consoleLines {
		if now.Sub(l.at) < consoleLifetime {
			keep = append(keep, l)
		}
	}
	consoleLines = keep
	out := make([]string, len(keep))
	for i, l := range keep {
		out[i] = l.text
	}
	return out
}

// hudStatus is what the HUD shows for one frame.
type hudStatus struct {
	Conn      transport.ConnState
	Replay    bool
	Error     string
	Render    render.Stats
	Cache     assets.CacheStats
	Uptime    time.Duration
	Connected time.Duration
	SinceAOI  time.Duration
	HaveAOI   bool
	SincePong time.Duration
	HavePong  bool

	Prefetched  int
	Prefetching int
}

func cacheLine(name string, c assets.StateCounts) string {
	s := fmt.Sprintf("%s %d/%d", name, c.Ready, c.Total())
	if c.Error > 0 {
		s += fmt.Sprintf(" (%d failed)", c.Error)
	}
	if c.Rejected > 0 {
		s += fmt.Sprintf(" (%d over cap)", c.Rejected)
	}
	return s
}

// hudLines renders st as text. The first line is the connection status.
func hudLines(st hudStatus) []string {
	var lines []string
	switch {
	case st.Replay:
		lines = append(lines, "Replay")
	case st.Conn == transport.StateConnected:
		lines = append(lines, "Connected "+durafmt.Parse(st.Connected).LimitFirstN(2).Format(shortUnits))
	case st.Conn == transport.StateConnecting:
		lines = append(lines, "Connecting...")
	default:
		lines = append(lines, "Disconnected (R to reconnect)")
	}
	if st.HaveAOI {
		lines = append(lines, fmt.Sprintf("last update %dms ago", st.SinceAOI.Milliseconds()))
	}
	if st.HavePong {
		lines = append(lines, fmt.Sprintf("pong %dms ago", st.SincePong.Milliseconds()))
	}
	if st.Prefetched > 0 || st.Prefetching > 0 {
		lines = append(lines, fmt.Sprintf("prefetch %d done, %d pending", st.Prefetched, st.Prefetching))
	}
	r := st.Render
	lines = append(lines,
		fmt.Sprintf("entities %d  objects %d  layers %d  placeholders %d  loading %d",
			r.Entities, r.Objects, r.LayersDrawn, r.Placeholders, r.Loading),
		cacheLine("layers", st.Cache.Layers)+"  "+cacheLine("atlases", st.Cache.Atlases),
		cacheLine("textures", st.Cache.Textures)+"  "+humanize.Bytes(uint64(st.Cache.TextureBytes)),
		"uptime "+durafmt.Parse(st.Uptime).LimitFirstN(2).Format(shortUnits),
	)
	return lines
}

func drawHUD(screen *ebiten.Image, st hudStatus, now time.Time) {
	if hudFace == nil {
		return
	}
	lineH := gs.HUDFontSize * 1.4
	lines := hudLines(st)
	console := recentConsole(now)

	panelH := float32(lineH * float64(len(lines)))
	vector.DrawFilledRect(screen, 4, 4, 520, panelH+8, hudPanelCol, false)
	y := 8.0
	for _, l := range lines {
		drawHUDText(screen, l, 8, y, hudTextCol)
		y += lineH
	}

	if st.Error != "" {
		w := float64(screen.Bounds().Dx())
		adv := text.Advance(st.Error, hudFace)
		drawHUDText(screen, st.Error, (w-adv)/2, 8, hudErrorCol)
	}

	y = float64(screen.Bounds().Dy()) - lineH*float64(len(console)) - 8
	for _, l := range console {
		drawHUDText(screen, l, 8, y, hudTextCol)
		y += lineH
	}
}

func drawHUDText(dst *ebiten.Image, s string, x, y float64, c color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(dst, s, hudFace, op)
}
