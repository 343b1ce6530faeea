package chat

import (
	"chat-relay/errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type RoomName string

type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Catalog is the fixed set of rooms clients may join and post to.
type Catalog struct {
	names []RoomName
	index map[RoomName]struct{}
}

// NewCatalog validates and deduplicates room names, keeping their order.
func NewCatalog(names ...string) (Catalog, error) {
	c := Catalog{index: make(map[RoomName]struct{})}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := ValidateRoomName(name); err != nil {
			return Catalog{}, fmt.Errorf("room %q: %w", name, err)
		}
		room := RoomName(name)
		if _, ok := c.index[room]; ok {
			continue
		}
		c.index[room] = struct{}{}
		c.names = append(c.names, room)
	}
	if len(c.names) == 0 {
		return Catalog{}, fmt.Errorf("%w: at least one room is required", errors.ErrInvalidRoomName)
	}
	return c, nil
}

// ParseCatalog reads a comma separated list such as "general,random".
func ParseCatalog(list string) (Catalog, error) {
	return NewCatalog(strings.Split(list, ",")...)
}

func (c Catalog) Contains(room RoomName) bool {
	_, ok := c.index[room]
	return ok
}

func (c Catalog) Rooms() []RoomName {
	out := make([]RoomName, len(c.names))
	copy(out, c.names)
	return out
}
