package main

import (
	"context"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	dark "github.com/thiagokokada/dark-mode-go"

	"cyberia/protocol"
	"cyberia/render"
	"cyberia/transport"
	"cyberia/world"
)

var (
	clearDark  = color.RGBA{12, 12, 16, 255}
	clearLight = color.RGBA{48, 48, 56, 255}
)

// clearColorFor picks the colour outside the world grid.
func clearColorFor(isDark bool, err error) color.RGBA {
	if err != nil || isDark {
		return clearDark
	}
	return clearLight
}

type Game struct {
	app        *App
	clearColor color.RGBA
}

func newGame(app *App) *Game {
	isDark, err := dark.IsDarkMode()
	if err != nil {
		logDebug("dark mode: %v", err)
	}
	return &Game{app: app, clearColor: clearColorFor(isDark, err)}
}

// Update drains the connection, handles input and advances interpolation.
func (g *Game) Update() error {
	a := g.app
	select {
	case <-a.ctx.Done():
		return ebiten.Termination
	default:
	}
	now := time.Now()
	a.handleEvents(now)
	a.maybePing(now)

	if inpututil.IsKeyJustPressed(ebiten.KeyF3) {
		a.renderer.ForceDevUI = !a.renderer.ForceDevUI
		gs.ForceDevUI = a.renderer.ForceDevUI
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		gs.ShowHUD = !gs.ShowHUD
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) && a.conn != nil && a.conn.State() == transport.StateDisconnected {
		a.conn.Connect()
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && a.world.Initialized() {
		x, y := ebiten.CursorPosition()
		cell := screenToCell(a.renderer.Camera(), a.world.Config().CellSize, x, y)
		a.send(protocol.PlayerAction(cell.X, cell.Y))
	}

	a.world.Interpolate(now)
	a.prefetch.Step(a.resolver)
	return nil
}

// screenToCell maps a screen pixel to grid cell coordinates through the
// inverse camera transform.
func screenToCell(cam *render.Camera, cellSize float64, x, y int) world.Vec2 {
	if cellSize <= 0 {
		cellSize = 1
	}
	g := cam.GeoM()
	g.Invert()
	wx, wy := g.Apply(float64(x), float64(y))
	return world.Vec2{X: wx / cellSize, Y: wy / cellSize}
}

func (g *Game) Draw(screen *ebiten.Image) {
	a := g.app
	now := time.Now()
	screen.Fill(g.clearColor)

	snap := a.world.Snapshot()
	b := screen.Bounds()
	a.canvas.Bind(screen)
	a.renderer.Frame(a.canvas, snap, now, b.Dx(), b.Dy())
	a.world.UpdateEffects(now)

	if gs.ShowHUD {
		drawHUD(screen, a.status(now), now)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 320 && outsideHeight > 240 {
		gs.WindowWidth = outsideWidth
		gs.WindowHeight = outsideHeight
	}
	return outsideWidth, outsideHeight
}

func runGame(ctx context.Context, app *App) error {
	ebiten.SetWindowTitle("Cyberia")
	ebiten.SetWindowSize(gs.WindowWidth, gs.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	// Keep Update in step with Draw so interpolation runs once per frame.
	ebiten.SetTPS(ebiten.SyncWithFPS)

	op := &ebiten.RunGameOptions{ScreenTransparent: false}
	return ebiten.RunGameWithOptions(newGame(app), op)
}
