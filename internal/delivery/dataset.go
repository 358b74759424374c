package delivery

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/locations.yaml
var embeddedLocations []byte

// Kind region level
type Kind uint8

const (
	KindCountry Kind = iota
	KindCounty
	KindSubCounty
	KindTown
)

// String returns the level name
func (k Kind) String() string {
	switch k {
	case KindCountry:
		return "country"
	case KindCounty:
		return "county"
	case KindSubCounty:
		return "sub_county"
	case KindTown:
		return "town"
	default:
		return "unknown"
	}
}

// Node one region in the arena. Parent is -1 for the root.
type Node struct {
	Kind     Kind
	Name     string
	Parent   int
	Children []int
	Couriers []string // towns only
}

// Courier delivery partner
type Courier struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	BaseFee     int    `json:"base_fee" yaml:"base_fee"`
	Days        int    `json:"days" yaml:"days"`
}

// Dataset immutable region/courier table. Safe for concurrent reads.
type Dataset struct {
	nodes        []Node
	counties     map[string]int
	couriers     map[string]Courier
	courierOrder []string
}

type rawDataset struct {
	Country  string      `yaml:"country"`
	Couriers []Courier   `yaml:"couriers"`
	Counties []rawCounty `yaml:"counties"`
}

type rawCounty struct {
	Name        string         `yaml:"name"`
	SubCounties []rawSubCounty `yaml:"sub_counties"`
}

type rawSubCounty struct {
	Name  string    `yaml:"name"`
	Towns []rawTown `yaml:"towns"`
}

type rawTown struct {
	Name     string   `yaml:"name"`
	Couriers []string `yaml:"couriers"`
}

var (
	defaultOnce    sync.Once
	defaultDataset *Dataset
)

// Default returns the embedded dataset, parsed on first use.
func Default() *Dataset {
	defaultOnce.Do(func() {
		ds, err := Parse(embeddedLocations)
		if err != nil {
			panic(fmt.Errorf("embedded locations invalid: %w", err))
		}
		defaultDataset = ds
	})
	return defaultDataset
}

// Load reads a dataset file; an empty path returns the embedded dataset.
func Load(path string) (*Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations: %w", err)
	}
	return Parse(data)
}

// Parse builds a dataset from YAML.
func Parse(data []byte) (*Dataset, error) {
	var raw rawDataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	if strings.TrimSpace(raw.Country) == "" {
		return nil, errors.New("country name is required")
	}

	ds := &Dataset{
		counties: make(map[string]int, len(raw.Counties)),
		couriers: make(map[string]Courier, len(raw.Couriers)),
	}
	for _, c := range raw.Couriers {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, errors.New("courier id is required")
		}
		if _, dup := ds.couriers[id]; dup {
			return nil, fmt.Errorf("duplicate courier %s", id)
		}
		c.ID = id
		ds.couriers[id] = c
		ds.courierOrder = append(ds.courierOrder, id)
	}

	root := ds.add(-1, KindCountry, raw.Country, nil)
	for _, county := range raw.Counties {
		key := normalizeName(county.Name)
		if _, dup := ds.counties[key]; dup {
			return nil, fmt.Errorf("duplicate county %s", county.Name)
		}
		countyIdx := ds.add(root, KindCounty, county.Name, nil)
		ds.counties[key] = countyIdx

		seenSub := map[string]bool{}
		for _, sub := range county.SubCounties {
			subKey := normalizeName(sub.Name)
			if seenSub[subKey] {
				return nil, fmt.Errorf("duplicate sub-county %s in %s", sub.Name, county.Name)
			}
			seenSub[subKey] = true
			subIdx := ds.add(countyIdx, KindSubCounty, sub.Name, nil)

			seenTown := map[string]bool{}
			for _, town := range sub.Towns {
				townKey := normalizeName(town.Name)
				if seenTown[townKey] {
					return nil, fmt.Errorf("duplicate town %s in %s", town.Name, sub.Name)
				}
				seenTown[townKey] = true
				for _, id := range town.Couriers {
					if _, ok := ds.couriers[id]; !ok {
						return nil, fmt.Errorf("town %s references unknown courier %s", town.Name, id)
					}
				}
				couriers := append([]string(nil), town.Couriers...)
				ds.add(subIdx, KindTown, town.Name, couriers)
			}
		}
	}
	return ds, nil
}

func (d *Dataset) add(parent int, kind Kind, name string, couriers []string) int {
	idx := len(d.nodes)
	d.nodes = append(d.nodes, Node{
		Kind:     kind,
		Name:     strings.TrimSpace(name),
		Parent:   parent,
		Couriers: couriers,
	})
	if parent >= 0 {
		d.nodes[parent].Children = append(d.nodes[parent].Children, idx)
	}
	return idx
}

// Node returns a copy of the node at idx.
func (d *Dataset) Node(idx int) (Node, bool) {
	if idx < 0 || idx >= len(d.nodes) {
		return Node{}, false
	}
	n := d.nodes[idx]
	n.Children = append([]int(nil), n.Children...)
	n.Couriers = append([]string(nil), n.Couriers...)
	return n, true
}

// CountyIndex finds a county by name, ignoring case and surrounding whitespace.
func (d *Dataset) CountyIndex(name string) (int, bool) {
	idx, ok := d.counties[normalizeName(name)]
	return idx, ok
}

// CanonicalCounty returns the dataset spelling of a county name.
func (d *Dataset) CanonicalCounty(name string) (string, bool) {
	idx, ok := d.CountyIndex(name)
	if !ok {
		return "", false
	}
	return d.nodes[idx].Name, true
}

// Counties lists county names in dataset order.
func (d *Dataset) Counties() []string {
	root := d.nodes[0]
	names := make([]string, 0, len(root.Children))
	for _, idx := range root.Children {
		names = append(names, d.nodes[idx].Name)
	}
	return names
}

// Courier looks up a courier by id.
func (d *Dataset) Courier(id string) (Courier, bool) {
	c, ok := d.couriers[strings.TrimSpace(id)]
	return c, ok
}

// Couriers lists every courier in dataset order.
func (d *Dataset) Couriers() []Courier {
	out := make([]Courier, 0, len(d.courierOrder))
	for _, id := range d.courierOrder {
		out = append(out, d.couriers[id])
	}
	return out
}

// TownView a town with its couriers
type TownView struct {
	Name     string   `json:"name"`
	Couriers []string `json:"couriers"`
}

// SubCountyView a sub-county with its towns
type SubCountyView struct {
	Name  string     `json:"name"`
	Towns []TownView `json:"towns"`
}

// CountyView a county subtree
type CountyView struct {
	Name        string          `json:"name"`
	SubCounties []SubCountyView `json:"sub_counties"`
	Couriers    []string        `json:"couriers"`
}

// County returns the subtree of one county.
func (d *Dataset) County(name string) (*CountyView, bool) {
	idx, ok := d.CountyIndex(name)
	if !ok {
		return nil, false
	}
	county := d.nodes[idx]
	view := &CountyView{Name: county.Name, Couriers: d.countyCouriers(idx)}
	for _, subIdx := range county.Children {
		sub := d.nodes[subIdx]
		sv := SubCountyView{Name: sub.Name}
		for _, townIdx := range sub.Children {
			town := d.nodes[townIdx]
			sv.Towns = append(sv.Towns, TownView{
				Name:     town.Name,
				Couriers: append([]string(nil), town.Couriers...),
			})
		}
		view.SubCounties = append(view.SubCounties, sv)
	}
	return view, true
}

// countyCouriers union of couriers across the county's towns, in catalogue order.
func (d *Dataset) countyCouriers(countyIdx int) []string {
	seen := map[string]bool{}
	for _, subIdx := range d.nodes[countyIdx].Children {
		for _, townIdx := range d.nodes[subIdx].Children {
			for _, id := range d.nodes[townIdx].Couriers {
				seen[id] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, id := range d.courierOrder {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (d *Dataset) childIndex(parent int, name string) (int, bool) {
	key := normalizeName(name)
	for _, idx := range d.nodes[parent].Children {
		if normalizeName(d.nodes[idx].Name) == key {
			return idx, true
		}
	}
	return -1, false
}

var nameReplacer = strings.NewReplacer("’", "'", "‘", "'", "-", " ")

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = nameReplacer.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
