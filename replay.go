package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"cyberia/transport"
)

// captureRecord is one inbound frame in a JSONL capture. Offset is the
// receive time in milliseconds since the capture started.
type captureRecord struct {
	Offset int64  `json:"t"`
	Data   string `json:"data"`
}

// recorder appends inbound frames to a capture file.
type recorder struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	enc   *json.Encoder
	start time.Time
	n     int
}

func newRecorder(path string) (*recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	w := bufio.NewWriter(f)
	return &recorder{f: f, w: w, enc: json.NewEncoder(w)}, nil
}

// Record writes data with its offset from the first recorded frame.
func (r *recorder) Record(at time.Time, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return
	}
	if r.start.IsZero() {
		r.start = at
	}
	rec := captureRecord{Offset: at.Sub(r.start).Milliseconds(), Data: string(data)}
	if err := r.enc.Encode(rec); err != nil {
		logError("record frame: %v", err)
		return
	}
	r.n++
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	logDebug("capture closed after %d frames", r.n)
	return err
}

var errEmptyCapture = errors.New("capture has no frames")

func loadCapture(path string) ([]captureRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []captureRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec captureRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errEmptyCapture
	}
	return recs, nil
}

// replaySource feeds a capture to the game loop at recorded pace in place
// of a live connection. Outbound frames are discarded.
type replaySource struct {
	recs    []captureRecord
	next    int
	start   time.Time
	state   transport.ConnState
	started bool
	closed  bool

	now func() time.Time
}

func newReplaySource(recs []captureRecord) *replaySource {
	return &replaySource{recs: recs, now: time.Now}
}

func (r *replaySource) Connect() {
	if r.closed || r.started {
		return
	}
	r.started = true
	r.state = transport.StateConnecting
}

func (r *replaySource) Poll() []transport.Event {
	if !r.started || r.closed {
		return nil
	}
	now := r.now()
	var out []transport.Event
	if r.state == transport.StateConnecting {
		r.start = now
		r.state = transport.StateConnected
		out = append(out, transport.Event{Kind: transport.EventOpen, At: now})
	}
	if r.state != transport.StateConnected {
		return out
	}
	elapsed := now.Sub(r.start).Milliseconds()
	for r.next < len(r.recs) && r.recs[r.next].Offset <= elapsed {
		out = append(out, transport.Event{Kind: transport.EventMessage, Data: []byte(r.recs[r.next].Data), At: now})
		r.next++
	}
	if r.next >= len(r.recs) {
		r.state = transport.StateDisconnected
		out = append(out, transport.Event{Kind: transport.EventClose, Reason: "replay finished", At: now})
	}
	return out
}

func (r *replaySource) Send(msg []byte) error {
	logDebugPacket("replay drop", msg)
	return nil
}

func (r *replaySource) State() transport.ConnState { return r.state }

func (r *replaySource) Close() {
	r.closed = true
	r.state = transport.StateDisconnected
}
