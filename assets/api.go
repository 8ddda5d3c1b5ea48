package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// maxFramesPerKey bounds the frame list kept for one animation key.
const maxFramesPerKey = 256

// Endpoints builds asset API URLs against a base such as
// "https://server.cyberiaonline.com".
type Endpoints struct {
	Base string
}

func (e Endpoints) base() string {
	return strings.TrimRight(e.Base, "/")
}

type textFilter struct {
	FilterType string `json:"filterType"`
	Type       string `json:"type"`
	Filter     string `json:"filter"`
}

func filterQuery(field, value string) string {
	model, _ := json.Marshal(map[string]textFilter{
		field: {FilterType: "text", Type: "equals", Filter: value},
	})
	q := url.Values{}
	q.Set("filterModel", string(model))
	q.Set("limit", "1")
	return q.Encode()
}

// AtlasURL returns the query for the atlas sprite sheet of itemKey.
func (e Endpoints) AtlasURL(itemKey string) string {
	return e.base() + "/api/atlas-sprite-sheet/?" + filterQuery("metadata.itemKey", itemKey)
}

// ObjectLayerURL returns the query for the object layer of itemID.
func (e Endpoints) ObjectLayerURL(itemID string) string {
	return e.base() + "/api/object-layer/?" + filterQuery("data.item.id", itemID)
}

// BlobURL returns the raw file endpoint for fileID.
func (e Endpoints) BlobURL(fileID string) string {
	return e.base() + "/api/file/blob/" + url.PathEscape(fileID)
}

// AuthURL returns the credential exchange endpoint.
func (e Endpoints) AuthURL() string {
	return e.base() + "/api/user/auth"
}

// firstRecord unwraps a query response. Accepted shapes are the paginated
// {status, data:{data:[...]}}, the single item {data:{...}}, a bare
// {data:[...]} and the legacy {items:[...]}.
func firstRecord(body []byte) (json.RawMessage, error) {
	var env struct {
		Data  json.RawMessage `json:"data"`
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedEnvelope, err)
	}
	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) > 0 && data[0] == '[':
		return firstOf(data)
	case len(data) > 0 && data[0] == '{':
		var page struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &page); err == nil {
			inner := bytes.TrimSpace(page.Data)
			if len(inner) > 0 && inner[0] == '[' {
				return firstOf(inner)
			}
		}
		return json.RawMessage(data), nil
	case len(bytes.TrimSpace(env.Items)) > 0:
		return firstOf(bytes.TrimSpace(env.Items))
	}
	return nil, ErrUnexpectedEnvelope
}

func firstOf(list []byte) (json.RawMessage, error) {
	var recs []json.RawMessage
	if err := json.Unmarshal(list, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedEnvelope, err)
	}
	if len(recs) == 0 {
		return nil, ErrEmptyResult
	}
	return recs[0], nil
}

// stringOrID accepts "abc" or {"_id":"abc"}.
type stringOrID string

func (s *stringOrID) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = stringOrID(str)
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("file id: %w", err)
	}
	*s = stringOrID(obj.ID)
	return nil
}

type atlasRecord struct {
	FileID   stringOrID `json:"fileId"`
	Metadata struct {
		ItemKey      string `json:"itemKey"`
		AtlasWidth   int    `json:"atlasWidth"`
		AtlasHeight  int    `json:"atlasHeight"`
		CellPixelDim int    `json:"cellPixelDim"`
		Frames       map[string][]struct {
			X          int `json:"x"`
			Y          int `json:"y"`
			Width      int `json:"width"`
			Height     int `json:"height"`
			FrameIndex int `json:"frameIndex"`
		} `json:"frames"`
	} `json:"metadata"`
}

// ParseAtlas decodes an atlas query response.
func ParseAtlas(body []byte) (*AtlasMeta, error) {
	raw, err := firstRecord(body)
	if err != nil {
		return nil, err
	}
	var rec atlasRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode atlas: %w", err)
	}
	if rec.FileID == "" {
		return nil, fmt.Errorf("atlas %q: no file id: %w", rec.Metadata.ItemKey, ErrEmptyResult)
	}
	meta := &AtlasMeta{
		ItemKey:      rec.Metadata.ItemKey,
		AtlasFileID:  string(rec.FileID),
		Width:        rec.Metadata.AtlasWidth,
		Height:       rec.Metadata.AtlasHeight,
		CellPixelDim: rec.Metadata.CellPixelDim,
		Frames:       make(map[string][]FrameRect, len(rec.Metadata.Frames)),
	}
	for key, list := range rec.Metadata.Frames {
		if len(list) > maxFramesPerKey {
			list = list[:maxFramesPerKey]
		}
		frames := make([]FrameRect, 0, len(list))
		for _, f := range list {
			if f.Width <= 0 || f.Height <= 0 {
				continue
			}
			frames = append(frames, FrameRect{X: f.X, Y: f.Y, W: f.Width, H: f.Height, Seq: f.FrameIndex})
		}
		sortFrames(frames)
		if len(frames) > 0 {
			meta.Frames[key] = frames
		}
	}
	return meta, nil
}

type objectLayerRecord struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Stats struct {
			Effect       int `json:"effect"`
			Resistance   int `json:"resistance"`
			Agility      int `json:"agility"`
			Range        int `json:"range"`
			Intelligence int `json:"intelligence"`
			Utility      int `json:"utility"`
		} `json:"stats"`
		Render struct {
			FrameDuration int                          `json:"frame_duration"`
			IsStateless   bool                         `json:"is_stateless"`
			Frames        map[string][]json.RawMessage `json:"frames"`
		} `json:"render"`
		Item struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Description string `json:"description"`
			Activable   bool   `json:"activable"`
		} `json:"item"`
	} `json:"data"`
	SHA256 string `json:"sha256"`
}

// ParseObjectLayer decodes an object-layer query response.
func ParseObjectLayer(body []byte) (*ObjectLayerMeta, error) {
	raw, err := firstRecord(body)
	if err != nil {
		return nil, err
	}
	var rec objectLayerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode object layer: %w", err)
	}
	itemID := rec.Data.Item.ID
	if itemID == "" {
		itemID = rec.ID
	}
	if itemID == "" {
		return nil, fmt.Errorf("object layer without item id: %w", ErrEmptyResult)
	}
	itemType := rec.Data.Item.Type
	if itemType == "" {
		itemType = rec.Type
	}
	meta := &ObjectLayerMeta{
		ItemID:          itemID,
		ItemType:        itemType,
		Description:     rec.Data.Item.Description,
		Activable:       rec.Data.Item.Activable,
		IsStateless:     rec.Data.Render.IsStateless,
		FrameDurationMS: rec.Data.Render.FrameDuration,
		FrameCounts:     make(map[string]int, len(rec.Data.Render.Frames)),
		Stats: Stats{
			Effect:       rec.Data.Stats.Effect,
			Resistance:   rec.Data.Stats.Resistance,
			Agility:      rec.Data.Stats.Agility,
			Range:        rec.Data.Stats.Range,
			Intelligence: rec.Data.Stats.Intelligence,
			Utility:      rec.Data.Stats.Utility,
		},
		ContentHash: rec.SHA256,
	}
	for key, frames := range rec.Data.Render.Frames {
		n := len(frames)
		if n > maxFramesPerKey {
			n = maxFramesPerKey
		}
		if n > 0 {
			meta.FrameCounts[key] = n
		}
	}
	return meta, nil
}
