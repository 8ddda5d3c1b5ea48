package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cyberia/anim"
	"cyberia/assets"
	"cyberia/render"
	"cyberia/transport"
	"cyberia/world"
)

// App owns every long-lived component. Everything it holds is touched from
// the game goroutine only.
type App struct {
	ctx context.Context

	world    *world.State
	resolver *assets.Resolver
	anim     *anim.Engine
	renderer *render.Renderer
	canvas   *render.EbitenCanvas
	conn     eventSource
	rec      *recorder
	prefetch *skillPrefetcher

	replay      bool
	started     time.Time
	connectedAt time.Time
	lastDropped uint64
	lastPing    time.Time
}

type appOptions struct {
	ReplayPath string
	RecordPath string
	Email      string
	Password   string
}

// newApp builds the components in dependency order: world, resolver,
// animation, renderer, then the connection.
func newApp(ctx context.Context, opts appOptions) (*App, error) {
	a := &App{
		ctx:      ctx,
		world:    world.New(),
		anim:     anim.NewEngine(),
		prefetch: newSkillPrefetcher(),
		started:  time.Now(),
	}

	fetcher := assets.NewHTTPFetcher(gs.fetcherConfig())
	if opts.Email != "" && opts.Password != "" {
		lctx, cancel := context.WithTimeout(ctx, time.Duration(gs.FetchTimeoutMS)*time.Millisecond)
		token, err := assets.Login(lctx, &http.Client{}, gs.AssetsURL, opts.Email, opts.Password)
		cancel()
		if err != nil {
			logWarn("login failed, continuing without credentials: %v", err)
		} else {
			fetcher.SetToken(token)
		}
	}
	a.resolver = assets.NewResolver(assets.Endpoints{Base: gs.AssetsURL}, fetcher, gs.cacheConfig())

	a.renderer = render.New(a.resolver, a.anim)
	a.renderer.ForceDevUI = gs.ForceDevUI
	canvas, err := render.NewEbitenCanvas(hudFace)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.canvas = canvas

	if opts.ReplayPath != "" {
		recs, err := loadCapture(opts.ReplayPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load replay: %w", err)
		}
		a.conn = newReplaySource(recs)
		a.replay = true
	} else {
		if gs.ServerURL == "" {
			a.Close()
			return nil, fmt.Errorf("no server url")
		}
		a.conn = transport.New(transport.DefaultConfig(gs.ServerURL))
	}
	if opts.RecordPath != "" {
		rec, err := newRecorder(opts.RecordPath)
		if err != nil {
			logError("record: %v", err)
		} else {
			a.rec = rec
		}
	}
	a.conn.Connect()
	return a, nil
}

// Close tears components down in reverse order of construction, except
// that the canvas goes after the resolver.
func (a *App) Close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	if a.rec != nil {
		if err := a.rec.Close(); err != nil {
			logError("close capture: %v", err)
		}
		a.rec = nil
	}
	if a.anim != nil {
		a.anim.Reset()
	}
	if a.resolver != nil {
		a.resolver.Close()
	}
	// Cached frame views point into the textures released above.
	if a.canvas != nil {
		a.canvas.Purge()
		a.canvas.Close()
		a.canvas = nil
	}
	if a.world != nil {
		a.world.Reset()
	}
}

func (a *App) status(now time.Time) hudStatus {
	st := hudStatus{
		Replay: a.replay,
		Uptime: now.Sub(a.started),
	}
	if a.conn != nil {
		st.Conn = a.conn.State()
	}
	if !a.connectedAt.IsZero() {
		st.Connected = now.Sub(a.connectedAt)
	}
	if msg, ok := a.world.ActiveError(now); ok {
		st.Error = msg
	}
	if pong := a.world.LastPong(); !pong.IsZero() {
		st.HavePong = true
		st.SincePong = now.Sub(pong)
	}
	if a.prefetch != nil {
		st.Prefetched = a.prefetch.warmed
		st.Prefetching = a.prefetch.Pending()
	}
	if last := a.world.LastUpdate(); !last.IsZero() {
		st.HaveAOI = true
		st.SinceAOI = now.Sub(last)
	}
	if a.renderer != nil {
		st.Render = a.renderer.Stats()
	}
	if a.resolver != nil {
		st.Cache = a.resolver.Stats()
	}
	return st
}

func credentialsFromEnv() (email, password string) {
	return os.Getenv("CYBERIA_EMAIL"), os.Getenv("CYBERIA_PASSWORD")
}
