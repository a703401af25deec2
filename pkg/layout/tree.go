// Package layout reconstructs the visual nesting of a requirements section
// from indentation cues.
//
// Nodes live in an arena owned by a Tree and refer to each other by NodeID,
// so parent and sibling back-references never form ownership cycles.
package layout

import "strings"

// NodeID addresses a node inside its Tree.
type NodeID int

// NoNode is the zero link.
const NoNode NodeID = -1

// Node is one paragraph of source text.
type Node struct {
	// Text holds the paragraph's strings in document order.
	Text []string
	// Indent is the normalized left margin, always a multiple of the builder step.
	Indent int

	parent     NodeID
	firstChild NodeID
	lastChild  NodeID
	next       NodeID
	prev       NodeID
}

// Tree is an arena of layout nodes. Node 0 is the root.
type Tree struct {
	nodes []Node
}

// NewTree returns a tree holding only an empty root.
func NewTree() *Tree {
	t := &Tree{}
	t.NewNode(nil, 0)
	return t
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return 0 }

// Len reports how many nodes the arena holds, attached or not.
func (t *Tree) Len() int { return len(t.nodes) }

// NewNode allocates an unattached node.
func (t *Tree) NewNode(text []string, indent int) NodeID {
	t.nodes = append(t.nodes, Node{
		Text:       text,
		Indent:     indent,
		parent:     NoNode,
		firstChild: NoNode,
		lastChild:  NoNode,
		next:       NoNode,
		prev:       NoNode,
	})
	return NodeID(len(t.nodes) - 1)
}

// Node returns a copy of the node's payload and links.
func (t *Tree) Node(id NodeID) Node { return t.nodes[id] }

func (t *Tree) Parent(id NodeID) NodeID     { return t.nodes[id].parent }
func (t *Tree) FirstChild(id NodeID) NodeID { return t.nodes[id].firstChild }
func (t *Tree) LastChild(id NodeID) NodeID  { return t.nodes[id].lastChild }
func (t *Tree) Next(id NodeID) NodeID       { return t.nodes[id].next }
func (t *Tree) Prev(id NodeID) NodeID       { return t.nodes[id].prev }

// IsLeaf reports whether the node has no children.
func (t *Tree) IsLeaf(id NodeID) bool { return t.nodes[id].firstChild == NoNode }

// AppendChild attaches child as the last child of parent, detaching it from
// wherever it was first.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.Detach(child)
	p := &t.nodes[parent]
	c := &t.nodes[child]
	c.parent = parent
	if p.lastChild == NoNode {
		p.firstChild = child
		p.lastChild = child
		return
	}
	t.nodes[p.lastChild].next = child
	c.prev = p.lastChild
	p.lastChild = child
}

// Detach unlinks a node from its parent and siblings. Its own children stay
// attached to it.
func (t *Tree) Detach(id NodeID) {
	n := &t.nodes[id]
	if n.prev != NoNode {
		t.nodes[n.prev].next = n.next
	}
	if n.next != NoNode {
		t.nodes[n.next].prev = n.prev
	}
	if n.parent != NoNode {
		p := &t.nodes[n.parent]
		if p.firstChild == id {
			p.firstChild = n.next
		}
		if p.lastChild == id {
			p.lastChild = n.prev
		}
	}
	n.parent, n.next, n.prev = NoNode, NoNode, NoNode
}

// Children lists the direct children of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	var out []NodeID
	for c := t.nodes[id].firstChild; c != NoNode; c = t.nodes[c].next {
		out = append(out, c)
	}
	return out
}

// Text joins the node's strings with single spaces.
func (t *Tree) Text(id NodeID) string {
	return strings.Join(t.nodes[id].Text, " ")
}

// SubtreeText flattens the text of every descendant of id, depth first.
func (t *Tree) SubtreeText(id NodeID) string {
	var parts []string
	var walk func(NodeID)
	walk = func(n NodeID) {
		for c := t.nodes[n].firstChild; c != NoNode; c = t.nodes[c].next {
			if s := t.Text(c); s != "" {
				parts = append(parts, s)
			}
			walk(c)
		}
	}
	walk(id)
	return strings.Join(parts, " ")
}

// ChildLines returns one string per child. A single child contributes each of
// its strings as its own line.
func (t *Tree) ChildLines(id NodeID) []string {
	children := t.Children(id)
	switch len(children) {
	case 0:
		return nil
	case 1:
		var out []string
		for _, s := range t.nodes[children[0]].Text {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, t.Text(c))
	}
	return out
}

// Dump is a nested snapshot of a subtree, convenient for printing and tests.
type Dump struct {
	Text     string `json:"text"`
	Indent   int    `json:"indent"`
	Children []Dump `json:"children,omitempty"`
}

// Dump snapshots the subtree rooted at id.
func (t *Tree) Dump(id NodeID) Dump {
	d := Dump{Text: t.Text(id), Indent: t.nodes[id].Indent}
	for _, c := range t.Children(id) {
		d.Children = append(d.Children, t.Dump(c))
	}
	return d
}

// String renders the subtree with two spaces per depth level.
func (d Dump) String() string {
	var b strings.Builder
	var walk func(Dump, int)
	walk = func(n Dump, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Text)
		b.WriteByte('\n')
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, c := range d.Children {
		walk(c, 0)
	}
	return b.String()
}
