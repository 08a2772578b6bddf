// Package export writes detection results in formats read by external
// tools: Gephi GDF files and plain-text community share tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// DefaultVertexColor is the muted blue given to every vertex.
const DefaultVertexColor = "#8DA0CB"

// WriteGDF writes vertices and labelled edges in Gephi's GDF format. Each
// undirected edge is written once (node1 < node2) with its community as
// the group column. names may be nil, in which case vertex indices are used.
func WriteGDF(w io.Writer, g *bkn.Graph, names []string, labels *bkn.Labels) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"nodedef>name VARCHAR", "label VARCHAR", "color VARCHAR"}); err != nil {
		return err
	}
	for i := 0; i < g.NumVertices(); i++ {
		label := strconv.Itoa(i)
		if i < len(names) {
			label = names[i]
		}
		if err := cw.Write([]string{strconv.Itoa(i), label, DefaultVertexColor}); err != nil {
			return err
		}
	}

	if err := cw.Write([]string{"edgedef>node1 VARCHAR", "node2 VARCHAR", "group VARCHAR"}); err != nil {
		return err
	}
	for e := 0; e < g.NumEdges(); e++ {
		edge := g.Edge(e)
		if edge.To < edge.From {
			continue
		}
		row := []string{strconv.Itoa(edge.From), strconv.Itoa(edge.To), strconv.Itoa(labels.At(e))}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteGDFFile writes the GDF export to path.
func WriteGDFFile(path string, g *bkn.Graph, names []string, labels *bkn.Labels) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := WriteGDF(file, g, names, labels); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
