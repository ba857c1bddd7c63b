package slot

import (
	"errors"
	"fmt"
	"strings"
)

// Channel is a catalogue entry. Its position in the catalogue decides where
// its table lives in every grid.
type Channel struct {
	Name string
	Link string
}

// Catalog is the ordered, immutable channel list.
type Catalog struct {
	channels []Channel
	index    map[string]int
}

// NewCatalog validates names (non-empty, unique) and builds the catalogue.
func NewCatalog(channels []Channel) (*Catalog, error) {
	if len(channels) == 0 {
		return nil, errors.New("at least one channel must be configured")
	}
	c := &Catalog{
		channels: make([]Channel, len(channels)),
		index:    make(map[string]int, len(channels)),
	}
	for i, ch := range channels {
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			return nil, fmt.Errorf("channel %d: name cannot be empty", i)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate channel name %q", name)
		}
		c.channels[i] = Channel{Name: name, Link: strings.TrimSpace(ch.Link)}
		c.index[name] = i
	}
	return c, nil
}

// Index returns the position of a channel by exact name.
func (c *Catalog) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Lookup returns the channel with the given name.
func (c *Catalog) Lookup(name string) (Channel, bool) {
	i, ok := c.index[name]
	if !ok {
		return Channel{}, false
	}
	return c.channels[i], true
}

// At returns the channel at position i.
func (c *Catalog) At(i int) Channel {
	return c.channels[i]
}

// Len returns the number of channels.
func (c *Catalog) Len() int {
	return len(c.channels)
}

// Channels returns a copy of the catalogue in order.
func (c *Catalog) Channels() []Channel {
	out := make([]Channel, len(c.channels))
	copy(out, c.channels)
	return out
}

// Availability is the free/occupied state of one channel's four shifts on a
// given day. A shift is free when its cell is blank.
type Availability struct {
	Index   int
	Channel Channel
	Free    [len(Shifts)]bool
}

// AnyFree reports whether at least one shift is free.
func (a Availability) AnyFree() bool {
	for _, f := range a.Free {
		if f {
			return true
		}
	}
	return false
}
