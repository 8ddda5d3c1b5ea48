package render

import "strings"

// Layer priorities by item type. Lower values draw first.
const (
	prioritySkin    = 10
	priorityEyes    = 11
	priorityHair    = 12
	priorityClothes = 20
	priorityHat     = 30
	priorityWeapon  = 40
	priorityShield  = 41
	priorityOther   = 50
)

var itemTypePriority = map[string]int{
	"skin":    prioritySkin,
	"body":    prioritySkin,
	"eyes":    priorityEyes,
	"hair":    priorityHair,
	"clothes": priorityClothes,
	"armor":   priorityClothes,
	"hat":     priorityHat,
	"helmet":  priorityHat,
	"weapon":  priorityWeapon,
	"shield":  priorityShield,
}

// Priority returns the draw priority for an object-layer item type.
func Priority(itemType string) int {
	if p, ok := itemTypePriority[strings.ToLower(strings.TrimSpace(itemType))]; ok {
		return p
	}
	return priorityOther
}
