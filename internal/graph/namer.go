package graph

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Namer assigns stable spreadsheet-style names (A..Z, AA, AB, ...) to tape
// values for source emission. The same Ref always maps to the same name
// within one Namer, and distinct Refs never collide.
type Namer struct {
	names *orderedmap.OrderedMap[Ref, string]
}

// NewNamer returns an empty Namer.
func NewNamer() *Namer {
	return &Namer{names: orderedmap.New[Ref, string]()}
}

// Name returns the name for r, assigning the next free one on first sight.
func (n *Namer) Name(r Ref) string {
	if name, ok := n.names.Get(r); ok {
		return name
	}
	name := sequenceName(n.names.Len() + 1)
	n.names.Set(r, name)
	return name
}

// Names returns every assigned name in assignment order.
func (n *Namer) Names() []string {
	out := make([]string, 0, n.names.Len())
	for pair := n.names.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// sequenceName converts a 1-based position into a spreadsheet column name:
// 1 is A, 26 is Z, 27 is AA.
func sequenceName(pos int) string {
	var letters []byte
	for pos > 0 {
		letters = append(letters, byte('A'+(pos-1)%26))
		pos = (pos - 1) / 26
	}
	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters)
}
