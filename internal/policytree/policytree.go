// Package policytree implements the virtual-space classification tree:
// path-matched nodes, each granting a VirtualSpace to subjects that enter
// them, walked by the hierarchy handler in internal/handler.
package policytree

import (
	"regexp"
	"sort"

	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/vspace"
)

// HighestPriority is used for children that must be matched first.
const HighestPriority = 0

// Node is one matched point in a policy tree. Cinfo is its stable
// identity, handed back to the kernel as the subject's object_cinfo and
// used to resume a walk on a later event. The original implementation
// used the node's heap address as this identity; this port uses a
// monotonic counter assigned at build time instead, which the
// specification explicitly allows.
// Recursive records whether a node's membership was declared to propagate
// to descendants that don't override it. No walk currently consults this
// field; ChildByPath matches purely on path pattern. The original
// implementation carries the same vestigial recursive/is_recursive fields
// without ever reading them either, so this mirrors its behavior rather
// than a gap introduced here — see the pinning test in
// policytree_test.go.
type Node struct {
	path        string
	re          *regexp.Regexp
	Recursive   bool
	VS          vspace.VirtualSpace
	Children    []*Node
	ParentCinfo int
	Cinfo       int
}

// Path returns the node's raw path pattern.
func (n *Node) Path() string { return n.path }

// HasChildren reports whether n has at least one child.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// ChildByPath returns the first child whose pattern matches path.
func (n *Node) ChildByPath(path string) *Node {
	for _, c := range n.Children {
		if c.re.MatchString(path) {
			return c
		}
	}
	return nil
}

// Tree is a named root node.
type Tree struct {
	Name string
	root *Node
}

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.root }

func compilePattern(path string) (*regexp.Regexp, error) {
	pattern := path
	if len(pattern) == 0 || pattern[0] != '^' {
		pattern = "^" + pattern
	}
	if pattern[len(pattern)-1] != '$' {
		pattern = pattern + "$"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Wrap(errs.Config, err, "policytree: invalid path pattern "+path)
	}
	return re, nil
}

// nodeBuilder accumulates a node's configuration before spaces are
// resolved to concrete bitmaps at Build time.
type nodeBuilder struct {
	path      string
	recursive bool

	memberOf map[string]bool // space name -> include(true)/exclude(false)
	reads    []string
	writes   []string
	sees     []string

	childrenByPriority map[int][]*nodeBuilder
}

func newNodeBuilder(path string) *nodeBuilder {
	return &nodeBuilder{path: path, memberOf: make(map[string]bool), childrenByPriority: make(map[int][]*nodeBuilder)}
}

func (b *nodeBuilder) getOrCreateChild(priority int, path string) *nodeBuilder {
	for _, c := range b.childrenByPriority[priority] {
		if c.path == path {
			return c
		}
	}
	child := newNodeBuilder(path)
	b.childrenByPriority[priority] = append(b.childrenByPriority[priority], child)
	return child
}

func (b *nodeBuilder) memberOfIncludeOrExclude(space string, include bool) {
	b.memberOf[space] = include
}

func (b *nodeBuilder) setAccessWithoutMember(reads, writes, sees []string) {
	b.reads = append(b.reads, reads...)
	b.writes = append(b.writes, writes...)
	b.sees = append(b.sees, sees...)
}

func (b *nodeBuilder) setRecursive(recursive bool) {
	b.recursive = recursive
}

// build assigns cinfo identities depth-first, registers every node into
// cinfoNodes, and returns the fully resolved Node.
func (b *nodeBuilder) build(def *vspace.Def, cinfoNodes map[int]*Node, nextCinfo *int, parentCinfo int) (*Node, error) {
	re, err := compilePattern(b.path)
	if err != nil {
		return nil, err
	}

	var memberSpaces []vspace.Space
	for name, include := range b.memberOf {
		if include {
			memberSpaces = append(memberSpaces, vspace.ByName(name))
		}
	}
	var vs vspace.VirtualSpace
	vs.SetMember(def, memberSpaces)
	vs.SetRead(def, namesToSpaces(b.reads))
	vs.SetWrite(def, namesToSpaces(b.writes))
	vs.SetSee(def, namesToSpaces(b.sees))

	cinfo := *nextCinfo
	*nextCinfo++

	node := &Node{
		path:        b.path,
		re:          re,
		Recursive:   b.recursive,
		VS:          vs,
		ParentCinfo: parentCinfo,
		Cinfo:       cinfo,
	}
	cinfoNodes[cinfo] = node

	var priorities []int
	for p := range b.childrenByPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	for _, p := range priorities {
		for _, childBuilder := range b.childrenByPriority[p] {
			child, err := childBuilder.build(def, cinfoNodes, nextCinfo, cinfo)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
	}

	return node, nil
}

func namesToSpaces(names []string) []vspace.Space {
	out := make([]vspace.Space, len(names))
	for i, n := range names {
		out[i] = vspace.ByName(n)
	}
	return out
}

// TreeBuilder accumulates a tree's nodes before Build resolves spaces.
type TreeBuilder struct {
	name string
	root *nodeBuilder
}

// NewTreeBuilder returns an empty TreeBuilder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{}
}

// WithName sets the tree's name.
func (tb *TreeBuilder) WithName(name string) *TreeBuilder {
	tb.name = name
	return tb
}

// Name returns the tree's name.
func (tb *TreeBuilder) Name() string { return tb.name }

// GetOrCreateRoot returns the root node builder, creating it with the
// given path (conventionally "/") if absent.
func (tb *TreeBuilder) GetOrCreateRoot(path string) *NodeBuilderHandle {
	if tb.root == nil {
		tb.root = newNodeBuilder(path)
	}
	return &NodeBuilderHandle{tb.root}
}

// NodeBuilderHandle is the public handle returned to config builders so
// they can chain node mutations without exposing nodeBuilder internals.
type NodeBuilderHandle struct {
	b *nodeBuilder
}

// GetOrCreateChild descends to (or creates) a child at the given priority
// and path.
func (h *NodeBuilderHandle) GetOrCreateChild(priority int, path string) *NodeBuilderHandle {
	return &NodeBuilderHandle{h.b.getOrCreateChild(priority, path)}
}

// MemberOfIncludeOrExclude marks this node as including or excluding the
// named space's membership.
func (h *NodeBuilderHandle) MemberOfIncludeOrExclude(space string, include bool) {
	h.b.memberOfIncludeOrExclude(space, include)
}

// SetAccessWithoutMember grants read/write/see spaces without granting
// membership.
func (h *NodeBuilderHandle) SetAccessWithoutMember(reads, writes, sees []string) {
	h.b.setAccessWithoutMember(reads, writes, sees)
}

// SetRecursive records the node's Recursive flag. No walk consults it:
// membership is not propagated to descendants, and a path with no
// matching child does not fall back to a recursive ancestor (see Node).
func (h *NodeBuilderHandle) SetRecursive(recursive bool) {
	h.b.setRecursive(recursive)
}

// Build resolves every node's spaces against def, assigns cinfo
// identities starting from *nextCinfo (advancing it), and registers every
// node into cinfoNodes.
func (tb *TreeBuilder) Build(def *vspace.Def, cinfoNodes map[int]*Node, nextCinfo *int) (*Tree, error) {
	if tb.root == nil {
		return nil, errs.New(errs.Config, "policytree: tree %q has no root", tb.name)
	}
	root, err := tb.root.build(def, cinfoNodes, nextCinfo, 0)
	if err != nil {
		return nil, err
	}
	return &Tree{Name: tb.name, root: root}, nil
}
