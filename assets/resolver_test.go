package assets

import (
	"errors"
	"image"
	"strings"
	"testing"
)

type fakeFetcher struct {
	started []Request
	results map[RequestID]Result
	closed  bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: make(map[RequestID]Result)}
}

func (f *fakeFetcher) Start(req Request) RequestID {
	f.started = append(f.started, req)
	id := RequestID(req.URL)
	f.results[id] = Result{Status: FetchPending}
	return id
}

func (f *fakeFetcher) Poll(id RequestID) Result {
	r, ok := f.results[id]
	if !ok {
		return Result{Status: FetchFailed, Err: ErrUnknownRequest}
	}
	if r.Status != FetchPending {
		delete(f.results, id)
	}
	return r
}

func (f *fakeFetcher) Close() { f.closed = true }

func (f *fakeFetcher) complete(url string, body string) {
	f.results[RequestID(url)] = Result{Status: FetchReady, Data: []byte(body)}
}

func (f *fakeFetcher) fail(url string) {
	f.results[RequestID(url)] = Result{Status: FetchFailed, Err: errors.New("boom")}
}

func (f *fakeFetcher) count(url string) int {
	n := 0
	for _, r := range f.started {
		if r.URL == url {
			n++
		}
	}
	return n
}

type fakeTexture struct {
	w, h  int
	freed bool
}

func (t *fakeTexture) Bounds() image.Rectangle { return image.Rect(0, 0, t.w, t.h) }
func (t *fakeTexture) Deallocate()             { t.freed = true }

var api = Endpoints{Base: "http://assets.test"}

const atlasBody = `{"status":"success","data":{"data":[{"fileId":{"_id":"file-anon"},"metadata":{"itemKey":"anon","atlasWidth":80,"atlasHeight":20,"cellPixelDim":20,"frames":{"down_idle":[{"x":20,"y":0,"width":20,"height":20,"frameIndex":1},{"x":0,"y":0,"width":20,"height":20,"frameIndex":0}]}}}]}}`

const layerBody = `{"data":{"id":"l1","type":"skin","data":{"stats":{"effect":1,"agility":3},"render":{"frame_duration":120,"is_stateless":false,"frames":{"down_walking":[[],[],[],[]],"down_idle":[[]]}},"item":{"id":"anon","type":"skin","description":"plain","activable":true}},"sha256":"abc"}}`

func newTestResolver(cfg Config) (*Resolver, *fakeFetcher, *[]*fakeTexture) {
	f := newFakeFetcher()
	r := NewResolver(api, f, cfg)
	var made []*fakeTexture
	r.decode = func(data []byte) (Texture, error) {
		if string(data) == "bad" {
			return nil, errors.New("bad image")
		}
		t := &fakeTexture{w: 80, h: 20}
		made = append(made, t)
		return t, nil
	}
	return r, f, &made
}

func TestObjectLayerLifecycle(t *testing.T) {
	r, f, _ := newTestResolver(Config{})
	url := api.ObjectLayerURL("anon")
	if _, ok := r.GetOrFetchObjectLayer("anon"); ok {
		t.Fatalf("available before fetch")
	}
	if _, ok := r.GetOrFetchObjectLayer("anon"); ok {
		t.Fatalf("available while pending")
	}
	if n := f.count(url); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	f.complete(url, layerBody)
	meta, ok := r.GetOrFetchObjectLayer("anon")
	if !ok {
		t.Fatalf("not available after completion")
	}
	if meta.ItemType != "skin" || meta.FrameDurationMS != 120 || meta.FrameCount("down_walking") != 4 {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.Stats.Agility != 3 || meta.ContentHash != "abc" || !meta.Activable {
		t.Fatalf("meta fields = %+v", meta)
	}
	again, ok := r.GetOrFetchObjectLayer("anon")
	if !ok || again != meta {
		t.Fatalf("cached meta not returned")
	}
}

func TestNegativeCacheSuppressesRefetch(t *testing.T) {
	tests := []struct {
		name   string
		finish func(f *fakeFetcher, url string)
	}{
		{"failed", func(f *fakeFetcher, url string) { f.fail(url) }},
		{"empty", func(f *fakeFetcher, url string) { f.complete(url, `{"status":"success","data":{"data":[]}}`) }},
		{"garbage", func(f *fakeFetcher, url string) { f.complete(url, `<html>`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, f, _ := newTestResolver(Config{})
			url := api.AtlasURL("k")
			r.GetOrFetchAtlas("k")
			tt.finish(f, url)
			for i := 0; i < 5; i++ {
				if _, ok := r.GetOrFetchAtlas("k"); ok {
					t.Fatalf("negative entry reported available")
				}
			}
			if n := f.count(url); n != 1 {
				t.Fatalf("fetches = %d, want 1", n)
			}
			if s := r.Stats(); s.Atlases.Error != 1 {
				t.Fatalf("stats = %+v", s.Atlases)
			}
		})
	}
}

func TestAtlasStartsTextureFetch(t *testing.T) {
	r, f, made := newTestResolver(Config{})
	r.GetOrFetchAtlas("anon")
	f.complete(api.AtlasURL("anon"), atlasBody)
	meta, ok := r.GetOrFetchAtlas("anon")
	if !ok {
		t.Fatalf("atlas not available")
	}
	if meta.AtlasFileID != "file-anon" || meta.FrameCount("down_idle") != 2 {
		t.Fatalf("meta = %+v", meta)
	}
	if fr, _ := meta.Frame("down_idle", 0); fr != (FrameRect{X: 0, Y: 0, W: 20, H: 20, Seq: 0}) {
		t.Fatalf("frame 0 = %+v", fr)
	}
	blob := api.BlobURL("file-anon")
	if f.count(blob) != 1 {
		t.Fatalf("texture fetch not started")
	}
	if got := r.TextureState("file-anon"); got != StateLoading {
		t.Fatalf("texture state = %v", got)
	}
	if _, ok := r.GetAtlasTexture("file-anon"); ok {
		t.Fatalf("texture ready while pending")
	}
	f.complete(blob, "png")
	tex, ok := r.GetAtlasTexture("file-anon")
	if !ok || tex == nil {
		t.Fatalf("texture not ready")
	}
	for i := 0; i < 3; i++ {
		again, ok := r.GetAtlasTexture("file-anon")
		if !ok || again != tex {
			t.Fatalf("ready texture changed")
		}
	}
	if f.count(blob) != 1 || len(*made) != 1 {
		t.Fatalf("texture fetched %d times, decoded %d", f.count(blob), len(*made))
	}
	if s := r.Stats(); s.TextureBytes != 80*20*4 || s.Textures.Ready != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestTextureDecodeFailure(t *testing.T) {
	r, f, _ := newTestResolver(Config{})
	r.GetAtlasTexture("x")
	f.complete(api.BlobURL("x"), "bad")
	if _, ok := r.GetAtlasTexture("x"); ok {
		t.Fatalf("bad image ready")
	}
	if got := r.TextureState("x"); got != StateError {
		t.Fatalf("state = %v", got)
	}
	r.GetAtlasTexture("x")
	if f.count(api.BlobURL("x")) != 1 {
		t.Fatalf("errored texture refetched")
	}
}

func TestCacheCap(t *testing.T) {
	r, f, _ := newTestResolver(Config{MaxLayerCacheSize: 2})
	for _, id := range []string{"a", "b", "c", "c"} {
		r.GetOrFetchObjectLayer(id)
	}
	if len(f.started) != 2 {
		t.Fatalf("fetches = %d, want 2", len(f.started))
	}
	s := r.Stats()
	if s.Layers.Total() != 2 || s.Layers.Rejected != 2 {
		t.Fatalf("stats = %+v", s.Layers)
	}
}

func TestCloseReleasesTextures(t *testing.T) {
	r, f, made := newTestResolver(Config{})
	r.GetAtlasTexture("a")
	f.complete(api.BlobURL("a"), "png")
	r.GetAtlasTexture("a")
	r.Close()
	if len(*made) != 1 || !(*made)[0].freed {
		t.Fatalf("texture not released")
	}
	if !f.closed {
		t.Fatalf("fetcher not closed")
	}
	if _, ok := r.GetAtlasTexture("a"); ok {
		t.Fatalf("texture available after Close")
	}
	if r.Stats().Textures.Total() != 0 {
		t.Fatalf("caches not emptied")
	}
}

func TestEmptyKeys(t *testing.T) {
	r, f, _ := newTestResolver(Config{})
	r.GetOrFetchObjectLayer("")
	r.GetOrFetchAtlas("")
	r.GetAtlasTexture("")
	if len(f.started) != 0 {
		t.Fatalf("empty keys fetched: %+v", f.started)
	}
}

func TestEnvelopeShapes(t *testing.T) {
	rec := `{"fileId":"f1","metadata":{"itemKey":"k","frames":{"down_idle":[{"x":0,"y":0,"width":4,"height":4,"frameIndex":0}]}}}`
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"paginated", `{"status":"success","data":{"data":[` + rec + `]}}`, nil},
		{"single", `{"data":` + rec + `}`, nil},
		{"list", `{"data":[` + rec + `]}`, nil},
		{"legacy items", `{"items":[` + rec + `]}`, nil},
		{"empty page", `{"status":"success","data":{"data":[]}}`, ErrEmptyResult},
		{"empty items", `{"items":[]}`, ErrEmptyResult},
		{"no envelope", `{"foo":1}`, ErrUnexpectedEnvelope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ParseAtlas([]byte(tt.body))
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAtlas: %v", err)
			}
			if meta.AtlasFileID != "f1" || meta.ItemKey != "k" {
				t.Fatalf("meta = %+v", meta)
			}
		})
	}
}

func TestURLs(t *testing.T) {
	got := api.AtlasURL("anon")
	want := "http://assets.test/api/atlas-sprite-sheet/?filterModel=" +
		"%7B%22metadata.itemKey%22%3A%7B%22filterType%22%3A%22text%22%2C%22type%22%3A%22equals%22%2C%22filter%22%3A%22anon%22%7D%7D&limit=1"
	if got != want {
		t.Fatalf("AtlasURL =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(api.ObjectLayerURL("x"), "data.item.id") {
		t.Fatalf("ObjectLayerURL missing field")
	}
	if got := (Endpoints{Base: "http://h/"}).BlobURL("a b"); got != "http://h/api/file/blob/a%20b" {
		t.Fatalf("BlobURL = %s", got)
	}
}

func TestMetadataStates(t *testing.T) {
	r, f, _ := newTestResolver(Config{})
	if s := r.ObjectLayerState("anon"); s != StateIdle {
		t.Fatalf("state before lookup = %v", s)
	}
	r.GetOrFetchObjectLayer("anon")
	r.GetOrFetchAtlas("anon")
	if r.ObjectLayerState("anon") != StateLoading || r.AtlasState("anon") != StateLoading {
		t.Fatalf("states after first lookup = %v/%v", r.ObjectLayerState("anon"), r.AtlasState("anon"))
	}
	f.complete(api.ObjectLayerURL("anon"), layerBody)
	f.fail(api.AtlasURL("anon"))
	r.GetOrFetchObjectLayer("anon")
	r.GetOrFetchAtlas("anon")
	if r.ObjectLayerState("anon") != StateReady || r.AtlasState("anon") != StateError {
		t.Fatalf("states after completion = %v/%v", r.ObjectLayerState("anon"), r.AtlasState("anon"))
	}
	if n := f.count(api.ObjectLayerURL("anon")); n != 1 {
		t.Fatalf("state queries started fetches: %d", n)
	}
}
