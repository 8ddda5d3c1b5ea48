package main

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"cyberia/assets"
	"cyberia/render"
	"cyberia/transport"
	"cyberia/world"
)

func TestScreenToCell(t *testing.T) {
	var cam render.Camera
	cam.Update(world.Vec2{X: 100, Y: 100}, 1, 2, 800, 600)
	tests := []struct {
		name string
		x, y int
		want world.Vec2
	}{
		{"centre", 400, 300, world.Vec2{X: 10, Y: 10}},
		{"right", 420, 300, world.Vec2{X: 11, Y: 10}},
		{"up left", 380, 280, world.Vec2{X: 9, Y: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := screenToCell(&cam, 10, tt.x, tt.y)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Fatalf("screenToCell(%d,%d) = %+v, want %+v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestClearColor(t *testing.T) {
	if clearColorFor(false, nil) != clearLight {
		t.Fatalf("light mode not honoured")
	}
	if clearColorFor(true, nil) != clearDark {
		t.Fatalf("dark mode not honoured")
	}
	if clearColorFor(false, errors.New("no portal")) != clearDark {
		t.Fatalf("detection failure should fall back to dark")
	}
}

func TestHUDLines(t *testing.T) {
	tests := []struct {
		name  string
		st    hudStatus
		first string
	}{
		{"disconnected", hudStatus{Conn: transport.StateDisconnected}, "Disconnected"},
		{"connecting", hudStatus{Conn: transport.StateConnecting}, "Connecting..."},
		{"connected", hudStatus{Conn: transport.StateConnected, Connected: 90 * time.Second}, "Connected 1"},
		{"replay", hudStatus{Replay: true}, "Replay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := hudLines(tt.st)
			if !strings.HasPrefix(lines[0], tt.first) {
				t.Fatalf("first line = %q, want prefix %q", lines[0], tt.first)
			}
		})
	}

	st := hudStatus{
		Cache: assets.CacheStats{
			Textures:     assets.StateCounts{Ready: 2, Error: 1},
			TextureBytes: 2 * 1000 * 1000,
		},
		Render: render.Stats{Placeholders: 3},
	}
	all := strings.Join(hudLines(st), "\n")
	for _, want := range []string{"textures 2/3 (1 failed)", "2.0 MB", "placeholders 3"} {
		if !strings.Contains(all, want) {
			t.Fatalf("HUD missing %q:\n%s", want, all)
		}
	}
}

func TestConsoleExpires(t *testing.T) {
	consoleMessage("hello")
	if got := recentConsole(time.Now()); len(got) == 0 || got[len(got)-1] != "hello" {
		t.Fatalf("console = %v", got)
	}
	if got := recentConsole(time.Now().Add(consoleLifetime + time.Second)); len(got) != 0 {
		t.Fatalf("console not expired: %v", got)
	}
}
