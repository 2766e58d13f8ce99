package engine

import "fmt"

// World is one of the fixed race worlds.
type World uint8

const (
	Mountain World = iota
	Water
	Forest
	Town
	Lava
	Dolly
	Mechanic
	Interface
	Watch
	Vid
	Forests
	Waters
	Mounts
)

var worldNames = [...]string{
	Mountain:  "mountain",
	Water:     "water",
	Forest:    "forest",
	Town:      "town",
	Lava:      "lava",
	Dolly:     "dolly",
	Mechanic:  "mechanic",
	Interface: "interface",
	Watch:     "watch",
	Vid:       "vid",
	Forests:   "forests",
	Waters:    "waters",
	Mounts:    "mounts",
}

// Valid reports whether w is a known world.
func (w World) Valid() bool {
	return w <= Mounts
}

func (w World) String() string {
	if !w.Valid() {
		return fmt.Sprintf("World(%d)", uint8(w))
	}
	return worldNames[w]
}

// Location is a world together with a track inside it.
type Location struct {
	World World `json:"world"`
	Track uint8 `json:"track"`
}

// ID returns the numeric world and track ids.
func (l Location) ID() (uint8, uint8) {
	return uint8(l.World), l.Track
}

func (l Location) String() string {
	return fmt.Sprintf("%s/%d", l.World, l.Track)
}

// ParseWorld validates a numeric world id.
func ParseWorld(worldID, trackID uint8) (Location, error) {
	w := World(worldID)
	if !w.Valid() {
		return Location{}, fmt.Errorf("%w: world id %d out of range 0..%d", ErrInvalidWorld, worldID, uint8(Mounts))
	}
	return Location{World: w, Track: trackID}, nil
}

// Worlds lists every known world in id order.
func Worlds() []World {
	worlds := make([]World, 0, len(worldNames))
	for w := Mountain; w <= Mounts; w++ {
		worlds = append(worlds, w)
	}
	return worlds
}
