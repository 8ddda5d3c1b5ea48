package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"cyberia/world"
)

// server enum order for directions; NONE is 8
var wireDirections = [...]world.Direction{
	world.DirN, world.DirNE, world.DirE, world.DirSE,
	world.DirS, world.DirSW, world.DirW, world.DirNW,
	world.DirNone,
}

// wireDirection accepts the server's integer enum or a name.
type wireDirection world.Direction

func (d *wireDirection) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if n >= 0 && n < len(wireDirections) {
			*d = wireDirection(wireDirections[n])
		} else {
			*d = wireDirection(world.DirNone)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	*d = wireDirection(world.ParseDirection(s))
	return nil
}

// wireMode accepts the server's integer enum (IDLE=0, WALKING=1,
// TELEPORTING=2) or a name.
type wireMode world.Mode

func (m *wireMode) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		switch n {
		case 1:
			*m = wireMode(world.ModeWalking)
		case 2:
			*m = wireMode(world.ModeTeleporting)
		default:
			*m = wireMode(world.ModeIdle)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	*m = wireMode(world.ParseMode(s))
	return nil
}

// wireID accepts ids sent as strings or numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

type wirePoint struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

func (p wirePoint) vec() world.Vec2 { return world.Vec2{X: p.X, Y: p.Y} }

type wireDims struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
}

type wireLayer struct {
	ItemID   wireID `json:"itemId"`
	Active   bool   `json:"active"`
	Quantity int    `json:"quantity"`
}

type wireColor struct {
	R float64  `json:"r"`
	G float64  `json:"g"`
	B float64  `json:"b"`
	A *float64 `json:"a"`
}

type initPayload struct {
	GridW               *int                 `json:"gridW"`
	GridH               *int                 `json:"gridH"`
	CellSize            float64              `json:"cellSize"`
	FPS                 int                  `json:"fps"`
	InterpolationMS     float64              `json:"interpolationMs"`
	AOIRadius           float64              `json:"aoiRadius"`
	DefaultObjectWidth  float64              `json:"defaultObjectWidth"`
	DefaultObjectHeight float64              `json:"defaultObjectHeight"`
	CameraSmoothing     float64              `json:"cameraSmoothing"`
	CameraZoom          float64              `json:"cameraZoom"`
	Colors              map[string]wireColor `json:"colors"`
	SumStatsLimit       int                  `json:"sumStatsLimit"`
	DevUI               bool                 `json:"devUi"`
}

type entityPayload struct {
	ID        wireID        `json:"id"`
	Pos       *wirePoint    `json:"Pos"`
	Dims      wireDims      `json:"Dims"`
	Direction wireDirection `json:"Direction"`
	Mode      wireMode      `json:"Mode"`
	Life      float64       `json:"life"`
	MaxLife   float64       `json:"maxLife"`
	Layers    []wireLayer   `json:"objectLayers"`
}

type playerPayload struct {
	entityPayload
	MapID     int         `json:"map_id"`
	Path      []wirePoint `json:"path"`
	TargetPos *wirePoint  `json:"target_pos"`
}

type gridObjectPayload struct {
	entityPayload
	Type        string `json:"Type"`
	PortalLabel string `json:"PortalLabel"`
}

type aoiPayload struct {
	PlayerID           wireID                     `json:"playerID"`
	Player             json.RawMessage            `json:"player"`
	VisiblePlayers     json.RawMessage            `json:"visiblePlayers"`
	VisibleGridObjects map[string]json.RawMessage `json:"visibleGridObjects"`
}

type skillItemsPayload struct {
	AssociatedItemIDs []wireID `json:"associatedItemIds"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func colorChannel(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// DecodeInit decodes an init_data payload. gridW and gridH are required.
func DecodeInit(payload []byte) (world.Config, error) {
	var p initPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return world.Config{}, fmt.Errorf("decode init_data: %w", err)
	}
	if p.GridW == nil || p.GridH == nil {
		return world.Config{}, fmt.Errorf("init_data grid dimensions: %w", ErrMissingField)
	}
	cfg := world.Config{
		GridW:               *p.GridW,
		GridH:               *p.GridH,
		CellSize:            p.CellSize,
		FPS:                 p.FPS,
		InterpolationMS:     p.InterpolationMS,
		AOIRadius:           p.AOIRadius,
		DefaultObjectWidth:  p.DefaultObjectWidth,
		DefaultObjectHeight: p.DefaultObjectHeight,
		CameraSmoothing:     p.CameraSmoothing,
		CameraZoom:          p.CameraZoom,
		SumStatsLimit:       p.SumStatsLimit,
		DevUI:               p.DevUI,
	}
	if len(p.Colors) > 0 {
		cfg.Colors = make(map[string]world.Color, len(p.Colors))
		for name, c := range p.Colors {
			a := uint8(255)
			if c.A != nil {
				a = colorChannel(*c.A)
			}
			cfg.Colors[strings.ToUpper(name)] = world.Color{
				R: colorChannel(c.R),
				G: colorChannel(c.G),
				B: colorChannel(c.B),
				A: a,
			}
		}
	}
	return cfg, nil
}

func (e entityPayload) update() (world.EntityUpdate, bool) {
	id := NormalizeID(string(e.ID))
	if id == "" || e.Pos == nil {
		return world.EntityUpdate{}, false
	}
	return world.EntityUpdate{
		ID:        id,
		Pos:       e.Pos.vec(),
		Dims:      world.Size{W: e.Dims.Width, H: e.Dims.Height},
		Direction: world.Direction(e.Direction),
		Mode:      world.Mode(e.Mode),
		Life:      e.Life,
		MaxLife:   e.MaxLife,
		Layers:    layerBindings(e.Layers),
	}, true
}

func layerBindings(in []wireLayer) []world.LayerBinding {
	if len(in) == 0 {
		return nil
	}
	out := make([]world.LayerBinding, 0, len(in))
	for _, l := range in {
		out = append(out, world.LayerBinding{
			ItemID:   NormalizeID(string(l.ItemID)),
			Active:   l.Active,
			Quantity: l.Quantity,
		})
	}
	return out
}

func (p playerPayload) update() (world.PlayerUpdate, bool) {
	eu, ok := p.entityPayload.update()
	if !ok {
		return world.PlayerUpdate{}, false
	}
	pu := world.PlayerUpdate{EntityUpdate: eu, MapID: p.MapID}
	if p.TargetPos != nil {
		pu.TargetPos = p.TargetPos.vec()
		pu.HasTarget = true
	}
	if len(p.Path) > 0 {
		pu.Path = make([]world.Vec2, len(p.Path))
		for i, c := range p.Path {
			pu.Path[i] = c.vec()
		}
	}
	return pu, true
}

// DecodeAOI decodes an aoi_update payload. Sub-objects that fail to decode
// or lack an id or position are skipped; the rest of the update applies.
func DecodeAOI(payload []byte) (world.AOIUpdate, error) {
	var p aoiPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return world.AOIUpdate{}, fmt.Errorf("decode aoi_update: %w", err)
	}
	var u world.AOIUpdate

	if len(p.Player) > 0 {
		var pp playerPayload
		if err := json.Unmarshal(p.Player, &pp); err == nil {
			if pp.ID == "" {
				pp.ID = p.PlayerID
			}
			if pu, ok := pp.update(); ok {
				u.Player = &pu
			}
		}
	}

	for _, raw := range visiblePlayerRecords(p.VisiblePlayers) {
		var pp playerPayload
		if err := json.Unmarshal(raw.data, &pp); err != nil {
			continue
		}
		if pp.ID == "" {
			pp.ID = wireID(raw.key)
		}
		if pu, ok := pp.update(); ok {
			u.Players = append(u.Players, pu)
		}
	}

	keys := make([]string, 0, len(p.VisibleGridObjects))
	for k := range p.VisibleGridObjects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var op gridObjectPayload
		if err := json.Unmarshal(p.VisibleGridObjects[key], &op); err != nil {
			continue
		}
		if op.ID == "" {
			op.ID = wireID(key)
		}
		eu, ok := op.entityPayload.update()
		if !ok {
			continue
		}
		typ := strings.ToLower(op.Type)
		if typ == "bot" {
			u.Bots = append(u.Bots, eu)
			continue
		}
		kind, ok := world.ParseObjectKind(typ)
		if !ok {
			continue
		}
		u.Objects = append(u.Objects, world.ObjectUpdate{
			ID:          eu.ID,
			Kind:        kind,
			Pos:         eu.Pos,
			Dims:        eu.Dims,
			Layers:      eu.Layers,
			PortalLabel: op.PortalLabel,
		})
	}
	return u, nil
}

type keyedRecord struct {
	key  string
	data json.RawMessage
}

// visiblePlayerRecords accepts visiblePlayers as an array or as an object
// keyed by player id. Object form is returned in key order.
func visiblePlayerRecords(raw json.RawMessage) []keyedRecord {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		out := make([]keyedRecord, 0, len(list))
		for _, r := range list {
			out = append(out, keyedRecord{data: r})
		}
		return out
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]keyedRecord, 0, len(keys))
		for _, k := range keys {
			out = append(out, keyedRecord{key: k, data: m[k]})
		}
		return out
	}
	return nil
}

// DecodeSkillItems decodes a skill_item_ids payload. Empty ids are dropped.
func DecodeSkillItems(payload []byte) ([]string, error) {
	var p skillItemsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode skill_item_ids: %w", err)
	}
	out := make([]string, 0, len(p.AssociatedItemIDs))
	for _, id := range p.AssociatedItemIDs {
		if s := NormalizeID(string(id)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// DecodeError decodes an error payload. A bare JSON string is accepted as
// the message.
func DecodeError(payload []byte) (string, error) {
	var p errorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		var s string
		if err2 := json.Unmarshal(payload, &s); err2 != nil {
			return "", fmt.Errorf("decode error payload: %w", err)
		}
		p.Message = s
	}
	if p.Message == "" {
		return "", fmt.Errorf("error message: %w", ErrMissingField)
	}
	return p.Message, nil
}
