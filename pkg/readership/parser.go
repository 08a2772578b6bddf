package readership

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// ReadEdgeList parses "u v [weight]" lines into a graph. Vertices are the
// integers 0..max; a link listed more than once accumulates weight. Blank
// lines and lines starting with '#' or '%' are skipped.
func ReadEdgeList(r io.Reader) (*bkn.Graph, error) {
	type link struct{ u, v, w int }
	var links []link
	maxVertex := -1

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: expected 'u v [weight]', got %q", lineNum, line)
		}
		u, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid source vertex %q: %w", lineNum, fields[0], err)
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid target vertex %q: %w", lineNum, fields[1], err)
		}
		w := 1
		if len(fields) == 3 {
			f, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid weight %q: %w", lineNum, fields[2], err)
			}
			if w, err = integerWeight(f); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		if u < 0 || v < 0 {
			return nil, fmt.Errorf("line %d: negative vertex index", lineNum)
		}

		links = append(links, link{u, v, w})
		maxVertex = max(maxVertex, u, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge list: %w", err)
	}
	if len(links) == 0 {
		return nil, bkn.ErrEmptyGraph
	}

	builder := bkn.NewBuilder(maxVertex + 1)
	for _, l := range links {
		if err := builder.AddLink(l.u, l.v, l.w); err != nil {
			return nil, err
		}
	}
	return builder.Build()
}

// ReadInteractions decodes a JSON object mapping person id to the item ids
// that person interacted with.
func ReadInteractions(r io.Reader) (map[string][]string, error) {
	var personToItems map[string][]string
	if err := json.NewDecoder(r).Decode(&personToItems); err != nil {
		return nil, fmt.Errorf("failed to decode interactions: %w", err)
	}
	return personToItems, nil
}

// ReadItemLabels decodes a JSON object mapping item id to display text.
func ReadItemLabels(r io.Reader) (map[string]string, error) {
	var labels map[string]string
	if err := json.NewDecoder(r).Decode(&labels); err != nil {
		return nil, fmt.Errorf("failed to decode item labels: %w", err)
	}
	return labels, nil
}

// Event is the subset of a lending-library event record needed to recover
// who borrowed what.
type Event struct {
	EventType string `json:"event_type"`
	Item      struct {
		URI string `json:"uri"`
	} `json:"item"`
	Member struct {
		URIs []string `json:"uris"`
	} `json:"member"`
}

// ReadEvents decodes a JSON array of events.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// BorrowersToItems collects, for every member, the distinct items they
// borrowed. Only "Borrow" events count. When keep is non-nil, items not in
// keep are ignored.
func BorrowersToItems(events []Event, keep map[string]bool) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, event := range events {
		if event.EventType != "Borrow" {
			continue
		}
		uri := event.Item.URI
		if uri == "" || (keep != nil && !keep[uri]) {
			continue
		}
		for _, member := range event.Member.URIs {
			if sets[member] == nil {
				sets[member] = make(map[string]struct{})
			}
			sets[member][uri] = struct{}{}
		}
	}

	out := make(map[string][]string, len(sets))
	for member, items := range sets {
		list := make([]string, 0, len(items))
		for item := range items {
			list = append(list, item)
		}
		out[member] = list
	}
	return out
}
