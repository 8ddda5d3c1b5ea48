package main

import (
	"sort"

	"cyberia/assets"
)

// layerWarmer is the part of the resolver the prefetcher drives.
type layerWarmer interface {
	GetOrFetchObjectLayer(itemID string) (*assets.ObjectLayerMeta, bool)
	GetOrFetchAtlas(itemKey string) (*assets.AtlasMeta, bool)
	ObjectLayerState(itemID string) assets.AssetState
	AtlasState(itemKey string) assets.AssetState
}

// skillPrefetcher warms metadata for items named by skill_item_ids so their
// first draw does not wait on a round trip. It never blocks: each Step
// advances every pending item by one resolver call.
type skillPrefetcher struct {
	pending map[string]struct{}
	warmed  int
}

func newSkillPrefetcher() *skillPrefetcher {
	return &skillPrefetcher{pending: make(map[string]struct{})}
}

func (p *skillPrefetcher) Add(ids []string) {
	for _, id := range ids {
		if id != "" {
			p.pending[id] = struct{}{}
		}
	}
}

func (p *skillPrefetcher) Pending() int { return len(p.pending) }

// settled reports whether a lookup has stopped changing. An entry still idle
// after a lookup was refused by a full cache.
func settled(s assets.AssetState) bool {
	return s != assets.StateLoading
}

// Step polls every pending item once and returns how many settled.
func (p *skillPrefetcher) Step(w layerWarmer) int {
	if len(p.pending) == 0 {
		return 0
	}
	ids := make([]string, 0, len(p.pending))
	for id := range p.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	done := 0
	for _, id := range ids {
		w.GetOrFetchObjectLayer(id)
		w.GetOrFetchAtlas(id)
		if settled(w.ObjectLayerState(id)) && settled(w.AtlasState(id)) {
			delete(p.pending, id)
			done++
		}
	}
	if done > 0 {
		p.warmed += done
		logDebug("prefetch: %d settled, %d pending", done, len(p.pending))
	}
	return done
}
