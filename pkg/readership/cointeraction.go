// Package readership turns reader interaction records into the weighted
// co-interaction multigraphs consumed by the community detection engine,
// and provides small reference graphs and loaders.
package readership

import (
	"fmt"
	"sort"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// Catalog maps between item ids (book URIs, Goodreads ids) and vertex
// indices. The order is fixed: vertex i is Items[i].
type Catalog struct {
	Items []string
	Index map[string]int
}

// Name returns the item id of vertex i.
func (c *Catalog) Name(i int) string { return c.Items[i] }

// Labelled returns a copy of the catalog whose items are replaced by the
// text found in labels. Items without a label keep their id.
func (c *Catalog) Labelled(labels map[string]string) *Catalog {
	out := &Catalog{
		Items: make([]string, len(c.Items)),
		Index: make(map[string]int, len(c.Items)),
	}
	for i, item := range c.Items {
		name := item
		if text, ok := labels[item]; ok {
			name = text
		}
		out.Items[i] = name
		out.Index[name] = i
	}
	return out
}

// BuildCoInteraction builds the item graph in which items u and v gain one
// unit of weight for every person who interacted with both. Duplicate
// items within one person's list count once. Items that never share a
// person with another item are left out, so the graph has no isolated
// vertices. Vertex order is ascending item id.
func BuildCoInteraction(personToItems map[string][]string) (*Catalog, *bkn.Graph, error) {
	persons := make([][]string, 0, len(personToItems))
	connected := make(map[string]struct{})
	for _, items := range personToItems {
		distinct := dedupe(items)
		if len(distinct) < 2 {
			continue
		}
		for _, item := range distinct {
			connected[item] = struct{}{}
		}
		persons = append(persons, distinct)
	}
	if len(connected) == 0 {
		return nil, nil, fmt.Errorf("no person interacted with two or more items: %w", bkn.ErrEmptyGraph)
	}

	catalog := &Catalog{
		Items: make([]string, 0, len(connected)),
		Index: make(map[string]int, len(connected)),
	}
	for item := range connected {
		catalog.Items = append(catalog.Items, item)
	}
	sort.Strings(catalog.Items)
	for i, item := range catalog.Items {
		catalog.Index[item] = i
	}

	builder := bkn.NewBuilder(len(catalog.Items))
	for _, items := range persons {
		for a := 0; a < len(items); a++ {
			for b := a + 1; b < len(items); b++ {
				if err := builder.AddLink(catalog.Index[items[a]], catalog.Index[items[b]], 1); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	g, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return catalog, g, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
