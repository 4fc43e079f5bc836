package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteTrace writes a DOT description of the graph into dir, creating it
// if needed, and returns the file path. The trace is observability only;
// it carries node kinds and shapes, never values.
func (g *Graph) WriteTrace(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating trace dir: %w", err)
	}
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir=BT;\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "  n%d [label=%q];\n", n.id, fmt.Sprintf("%s\n%s %v", n.name, n.op.kind(), n.shape))
		for _, in := range n.inputs {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", in.id, n.id)
		}
	}
	b.WriteString("}\n")

	path := filepath.Join(dir, name+".dot")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing trace: %w", err)
	}
	return path, nil
}
