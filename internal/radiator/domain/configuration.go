package radiator

import (
	"errors"
	"fmt"
	"strings"
)

// TileEvent renders the cached event named by EventID.
const TileEvent = "EVENT"

// ErrInvalidConfiguration marks a layout that cannot be displayed.
var ErrInvalidConfiguration = errors.New("radiator: invalid configuration")

// Configuration is the dashboard layout document.
type Configuration struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

// Page is one screen of tiles laid out on a grid.
type Page struct {
	Name    string `json:"name" yaml:"name"`
	Rows    int    `json:"rows" yaml:"rows"`
	Columns int    `json:"columns" yaml:"columns"`
	Tiles   []Tile `json:"tiles" yaml:"tiles"`
}

// Tile places one widget on a page. Position and size are optional; the
// dashboard flows unpositioned tiles.
type Tile struct {
	Row      *int   `json:"row,omitempty" yaml:"row,omitempty"`
	Column   *int   `json:"column,omitempty" yaml:"column,omitempty"`
	Width    *int   `json:"width,omitempty" yaml:"width,omitempty"`
	Height   *int   `json:"height,omitempty" yaml:"height,omitempty"`
	TileType string `json:"tileType" yaml:"tileType"`
	EventID  string `json:"eventId,omitempty" yaml:"eventId,omitempty"`
}

// Normalize fills default tile types.
func (c Configuration) Normalize() Configuration {
	pages := make([]Page, len(c.Pages))
	for i, page := range c.Pages {
		tiles := make([]Tile, len(page.Tiles))
		for j, tile := range page.Tiles {
			if strings.TrimSpace(tile.TileType) == "" {
				tile.TileType = TileEvent
			}
			tile.TileType = strings.ToUpper(tile.TileType)
			tiles[j] = tile
		}
		page.Tiles = tiles
		pages[i] = page
	}
	return Configuration{Pages: pages}
}

// Validate checks that every page has a grid and every positioned tile fits in it.
func (c Configuration) Validate() error {
	for i, page := range c.Pages {
		if strings.TrimSpace(page.Name) == "" {
			return fmt.Errorf("%w: page %d has no name", ErrInvalidConfiguration, i)
		}
		if page.Rows < 0 || page.Columns < 0 {
			return fmt.Errorf("%w: page %q has a negative grid", ErrInvalidConfiguration, page.Name)
		}
		for j, tile := range page.Tiles {
			if err := tile.validate(page); err != nil {
				return fmt.Errorf("%w: page %q tile %d: %s", ErrInvalidConfiguration, page.Name, j, err)
			}
		}
	}
	return nil
}

// EventIDs lists the events referenced by event tiles, in layout order.
func (c Configuration) EventIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, page := range c.Pages {
		for _, tile := range page.Tiles {
			if tile.EventID == "" {
				continue
			}
			if _, ok := seen[tile.EventID]; ok {
				continue
			}
			seen[tile.EventID] = struct{}{}
			ids = append(ids, tile.EventID)
		}
	}
	return ids
}

func (t Tile) validate(page Page) error {
	tileType := strings.ToUpper(t.TileType)
	if (tileType == "" || tileType == TileEvent) && strings.TrimSpace(t.EventID) == "" {
		return errors.New("event tile without eventId")
	}
	if t.Width != nil && *t.Width < 1 {
		return errors.New("width must be positive")
	}
	if t.Height != nil && *t.Height < 1 {
		return errors.New("height must be positive")
	}
	if t.Row != nil {
		if *t.Row < 1 || (page.Rows > 0 && *t.Row+span(t.Height)-1 > page.Rows) {
			return errors.New("row outside the grid")
		}
	}
	if t.Column != nil {
		if *t.Column < 1 || (page.Columns > 0 && *t.Column+span(t.Width)-1 > page.Columns) {
			return errors.New("column outside the grid")
		}
	}
	return nil
}

func span(size *int) int {
	if size == nil {
		return 1
	}
	return *size
}
