// apps/go-server/internal/countries/countries.go
//
// Provides country pool management for the game engine.
//
// Responsibilities:
//   - Load the raw country dataset from an operator-provided file or fall back
//     to the embedded default (assets/countries.json).
//   - Normalize records and drop the ones the game cannot use.
//   - Build a Catalog: every country synthesized exactly once, indexed by ISO
//     code and by case-folded name, sorted for display.
//
// Dataset format (JSON array):
//   [{"country_name": "...", "iso_code": "FRA", "region": "...",
//     "subregion": "...", "homicide_rate": 1.3, "year": 2021,
//     "flag_url": "https://..."}]
//
// Constraints:
//   • iso_code and country_name are required; iso_code is unique (first wins).
//   • homicide_rate must be finite and non-negative.
//   • A missing flag_url is derived from the ISO code when it names a known country.

package countries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/robalobadob/criminle/apps/go-server/assets"
	"github.com/robalobadob/criminle/apps/go-server/internal/crime"
)

// ErrEmptyDataset is returned when no usable record survives normalization.
var ErrEmptyDataset = errors.New("countries: dataset is empty")

// Load reads the dataset from path, or from the embedded default when path is empty.
func Load(path string) ([]crime.Country, error) {
	if path == "" {
		raw, err := assets.CountriesJSON()
		if err != nil {
			return nil, fmt.Errorf("read embedded countries: %w", err)
		}
		return Parse(bytes.NewReader(raw))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a JSON array of country records and normalizes it.
func Parse(r io.Reader) ([]crime.Country, error) {
	var raw []crime.Country
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode countries: %w", err)
	}
	out := normalize(raw)
	if len(out) == 0 {
		return nil, ErrEmptyDataset
	}
	return out, nil
}

// normalize trims and validates records, keeping the first record per ISO code.
// Derived stats present in the input are discarded.
func normalize(raw []crime.Country) []crime.Country {
	seen := make(map[string]struct{}, len(raw))
	out := make([]crime.Country, 0, len(raw))
	for _, c := range raw {
		c.Name = strings.TrimSpace(c.Name)
		c.ISOCode = strings.ToUpper(strings.TrimSpace(c.ISOCode))
		c.Region = strings.TrimSpace(c.Region)
		c.Subregion = strings.TrimSpace(c.Subregion)
		c.FlagURL = strings.TrimSpace(c.FlagURL)
		c.Stats = nil

		if c.Name == "" || c.ISOCode == "" {
			log.Warn().Str("name", c.Name).Str("iso", c.ISOCode).Msg("skipping country without name or iso code")
			continue
		}
		if c.HomicideRate < 0 || math.IsNaN(c.HomicideRate) || math.IsInf(c.HomicideRate, 0) {
			log.Warn().Str("iso", c.ISOCode).Float64("homicide_rate", c.HomicideRate).Msg("skipping country with invalid homicide rate")
			continue
		}
		if _, dup := seen[c.ISOCode]; dup {
			log.Warn().Str("iso", c.ISOCode).Msg("skipping duplicate country")
			continue
		}
		seen[c.ISOCode] = struct{}{}
		if c.FlagURL == "" {
			c.FlagURL = flagURL(c.ISOCode)
		}
		out = append(out, c)
	}
	return out
}

// flagURL builds a flagcdn.com URL for an ISO 3166-1 alpha-3 (or alpha-2)
// code, e.g. CHE -> ch, IRL -> ie. It returns "" for codes that do not name a
// known region; datasets should carry flag_url for those.
func flagURL(iso string) string {
	region, err := language.ParseRegion(iso)
	if err != nil || !region.IsCountry() {
		return ""
	}
	return "https://flagcdn.com/w320/" + strings.ToLower(region.String()) + ".png"
}

// Catalog is the synthesized, read-only country pool of one process.
// Countries handed out are copies; their stats never change.
type Catalog struct {
	list   []crime.Country
	byISO  map[string]int
	byName map[string]int
}

// NewCatalog synthesizes every country once and indexes the result.
func NewCatalog(raw []crime.Country, r crime.Rand) *Catalog {
	list := make([]crime.Country, len(raw))
	for i, c := range raw {
		list[i] = crime.Synthesize(c, r)
	}

	cl := collate.New(language.English, collate.Loose)
	sort.SliceStable(list, func(i, j int) bool {
		return cl.CompareString(list[i].Name, list[j].Name) < 0
	})

	fold := cases.Fold()
	cat := &Catalog{
		list:   list,
		byISO:  make(map[string]int, len(list)),
		byName: make(map[string]int, len(list)),
	}
	for i, c := range list {
		cat.byISO[c.ISOCode] = i
		cat.byName[fold.String(c.Name)] = i
	}
	return cat
}

// Len reports the number of countries in the pool.
func (c *Catalog) Len() int { return len(c.list) }

// At returns the i-th country in display order.
func (c *Catalog) At(i int) crime.Country { return clone(c.list[i]) }

// Lookup finds a country by ISO code (case-insensitive).
func (c *Catalog) Lookup(iso string) (crime.Country, bool) {
	i, ok := c.byISO[strings.ToUpper(strings.TrimSpace(iso))]
	if !ok {
		return crime.Country{}, false
	}
	return clone(c.list[i]), true
}

// FindByName finds a country by its display name, ignoring case.
func (c *Catalog) FindByName(name string) (crime.Country, bool) {
	i, ok := c.byName[cases.Fold().String(strings.TrimSpace(name))]
	if !ok {
		return crime.Country{}, false
	}
	return clone(c.list[i]), true
}

// All returns every country sorted by name.
func (c *Catalog) All() []crime.Country {
	out := make([]crime.Country, len(c.list))
	for i, x := range c.list {
		out[i] = clone(x)
	}
	return out
}

// clone copies the stats so callers cannot alter the catalog.
func clone(c crime.Country) crime.Country {
	if c.Stats != nil {
		st := *c.Stats
		c.Stats = &st
	}
	return c
}
