// Package config implements the policy configuration builder: virtual
// spaces, the policy trees they resolve into, and the event handlers bound
// to them. This is the authoring-time policy Config, distinct from the
// ambient process settings in internal/staticconfig.
package config

import (
	"strings"

	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/handler"
	"github.com/medusa-ds9/medusad/internal/policytree"
	"github.com/medusa-ds9/medusad/internal/vspace"
)

// Config is the fully resolved, immutable policy: trees, the event
// handlers bound to them, and the final virtual-space bit assignment.
type Config struct {
	trees      map[string]*policytree.Tree
	cinfoNodes map[int]*policytree.Node

	eventHandlers map[string][]*handler.EventHandler

	nameToSpaceBit map[string]int
	spaceBitToName map[int]string
}

// TreeByName implements handler.Context.
func (c *Config) TreeByName(name string) (*policytree.Tree, bool) {
	t, ok := c.trees[name]
	return t, ok
}

// NodeByCinfo implements handler.Context.
func (c *Config) NodeByCinfo(cinfo int) (*policytree.Node, bool) {
	n, ok := c.cinfoNodes[cinfo]
	return n, ok
}

// HandlersByEvent returns the handler chain registered for event, in
// registration order (the first applicable one wins).
func (c *Config) HandlersByEvent(event string) []*handler.EventHandler {
	return c.eventHandlers[event]
}

// NameToSpaceBit returns the bit id assigned to a space name.
func (c *Config) NameToSpaceBit(name string) (int, bool) {
	id, ok := c.nameToSpaceBit[name]
	return id, ok
}

// SpaceBitToName returns the space name assigned to a bit id.
func (c *Config) SpaceBitToName(bit int) (string, bool) {
	name, ok := c.spaceBitToName[bit]
	return name, ok
}

// parsedPath splits a "tree/seg1/seg2" path-shorthand into a tree name and
// a root-anchored item list; the root item is always literally "/".
type parsedPath struct {
	treeName string
	items    []string
}

func parsePath(path string) (parsedPath, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return parsedPath{}, errs.New(errs.Config, "config: path %q is missing a tree name", path)
	}

	treeName := parts[0]
	items := []string{"/"}
	items = append(items, parts[1:]...)
	return parsedPath{treeName: treeName, items: items}, nil
}

// SpaceBuilder accumulates one named space's path binding and
// read/write/see grants before it's registered with a ConfigBuilder.
type SpaceBuilder struct {
	name string
	path string
	recursive bool

	reads []string
	writes []string
	sees []string

	includeSpace []string
	excludeSpace []string

	includePath []pathFlag
	excludePath []pathFlag
}

type pathFlag struct {
	path      string
	recursive bool
}

// NewSpaceBuilder returns an empty SpaceBuilder.
func NewSpaceBuilder() *SpaceBuilder { return &SpaceBuilder{} }

// WithName sets the space's name.
func (s *SpaceBuilder) WithName(name string) *SpaceBuilder { s.name = name; return s }

// WithPath binds the space to a non-recursive path.
func (s *SpaceBuilder) WithPath(path string) *SpaceBuilder { s.path = path; s.recursive = false; return s }

// WithPathRecursive binds the space to a recursive path.
func (s *SpaceBuilder) WithPathRecursive(path string) *SpaceBuilder {
	s.path = path
	s.recursive = true
	return s
}

// Reads grants read access to the named spaces.
func (s *SpaceBuilder) Reads(names ...string) *SpaceBuilder { s.reads = append(s.reads, names...); return s }

// Writes grants write access to the named spaces.
func (s *SpaceBuilder) Writes(names ...string) *SpaceBuilder { s.writes = append(s.writes, names...); return s }

// Sees grants see access to the named spaces.
func (s *SpaceBuilder) Sees(names ...string) *SpaceBuilder { s.sees = append(s.sees, names...); return s }

// IncludeSpace grants this space membership at the named space's own path
// when Build runs. Only that path is used; the named space's IncludePath,
// ExcludePath, IncludeSpace and ExcludeSpace entries are not followed.
func (s *SpaceBuilder) IncludeSpace(name string) *SpaceBuilder {
	s.includeSpace = append(s.includeSpace, name)
	return s
}

// ExcludeSpace revokes this space's membership at the named space's own
// path when Build runs. Only that path is used; the named space's
// IncludePath, ExcludePath, IncludeSpace and ExcludeSpace entries are not
// followed.
func (s *SpaceBuilder) ExcludeSpace(name string) *SpaceBuilder {
	s.excludeSpace = append(s.excludeSpace, name)
	return s
}

// IncludePath additionally grants membership at path.
func (s *SpaceBuilder) IncludePath(path string, recursive bool) *SpaceBuilder {
	s.includePath = append(s.includePath, pathFlag{path, recursive})
	return s
}

// ExcludePath revokes membership at path.
func (s *SpaceBuilder) ExcludePath(path string, recursive bool) *SpaceBuilder {
	s.excludePath = append(s.excludePath, pathFlag{path, recursive})
	return s
}

// Builder accumulates the full policy before Build resolves it.
type Builder struct {
	trees map[string]*policytree.TreeBuilder

	spaceToPath map[string]pathFlag
	spaceOrder  []string // first-reference order; spaceToPath's map order is randomized

	includeSpace map[string][]string
	excludeSpace map[string][]string

	eventHandlers map[string][]*handler.Builder

	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		trees:         make(map[string]*policytree.TreeBuilder),
		spaceToPath:   make(map[string]pathFlag),
		includeSpace:  make(map[string][]string),
		excludeSpace:  make(map[string][]string),
		eventHandlers: make(map[string][]*handler.Builder),
	}
}

func (b *Builder) getOrCreateTree(name string) *policytree.TreeBuilder {
	tb, ok := b.trees[name]
	if !ok {
		tb = policytree.NewTreeBuilder().WithName(name)
		b.trees[name] = tb
	}
	return tb
}

func (b *Builder) updateOrCreateTreeByPath(path string, recursive bool, space string, include bool) (*policytree.NodeBuilderHandle, error) {
	parsed, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	tree := b.getOrCreateTree(parsed.treeName)
	node := tree.GetOrCreateRoot(parsed.items[0])
	for _, item := range parsed.items[1:] {
		node = node.GetOrCreateChild(policytree.HighestPriority, item)
	}

	node.MemberOfIncludeOrExclude(space, include)
	node.SetRecursive(recursive)
	return node, nil
}

// AddSpace registers one named space's path binding and grants.
func (b *Builder) AddSpace(space *SpaceBuilder) *Builder {
	if b.err != nil {
		return b
	}
	if space.name == "" {
		b.err = errs.New(errs.Config, "config: space is missing a name")
		return b
	}
	if _, exists := b.spaceToPath[space.name]; exists {
		b.err = errs.New(errs.Config, "config: duplicate space name %q", space.name)
		return b
	}
	b.spaceToPath[space.name] = pathFlag{space.path, space.recursive}
	b.spaceOrder = append(b.spaceOrder, space.name)

	node, err := b.updateOrCreateTreeByPath(space.path, space.recursive, space.name, true)
	if err != nil {
		b.err = err
		return b
	}
	node.SetAccessWithoutMember(space.reads, space.writes, space.sees)

	for _, inc := range space.includePath {
		if _, err := b.updateOrCreateTreeByPath(inc.path, inc.recursive, space.name, true); err != nil {
			b.err = err
			return b
		}
	}
	for _, exc := range space.excludePath {
		if _, err := b.updateOrCreateTreeByPath(exc.path, exc.recursive, space.name, false); err != nil {
			b.err = err
			return b
		}
	}

	b.includeSpace[space.name] = append(b.includeSpace[space.name], space.includeSpace...)
	b.excludeSpace[space.name] = append(b.excludeSpace[space.name], space.excludeSpace...)

	return b
}

// AddHierarchyEventHandler registers the built-in tree-walking handler for
// event, rooted at primaryTree, reading the path from attribute.
func (b *Builder) AddHierarchyEventHandler(event, primaryTree, attribute string, fromObject bool) *Builder {
	eb := handler.NewBuilder().Event(event).WithHierarchyHandler(primaryTree, attribute, fromObject)
	b.eventHandlers[event] = append(b.eventHandlers[event], eb)
	return b
}

// AddCustomEventHandler registers an application-supplied handler.
func (b *Builder) AddCustomEventHandler(custom handler.Custom) *Builder {
	eb := handler.NewBuilder().WithCustomHandler(custom)
	event := eb.EventName()
	b.eventHandlers[event] = append(b.eventHandlers[event], eb)
	return b
}

// Build resolves include/exclude space references (after all direct
// space/tree registrations), assigns final space bit ids, builds every
// tree, and builds every handler chain.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}

	for space, includes := range b.includeSpace {
		for _, include := range includes {
			target, ok := b.spaceToPath[include]
			if !ok {
				return nil, errs.New(errs.Config, "config: space %q does not exist", include)
			}
			if _, err := b.updateOrCreateTreeByPath(target.path, target.recursive, space, true); err != nil {
				return nil, err
			}
		}
	}
	for space, excludes := range b.excludeSpace {
		for _, exclude := range excludes {
			target, ok := b.spaceToPath[exclude]
			if !ok {
				return nil, errs.New(errs.Config, "config: space %q does not exist", exclude)
			}
			if _, err := b.updateOrCreateTreeByPath(target.path, target.recursive, space, false); err != nil {
				return nil, err
			}
		}
	}

	def := vspace.NewDef()
	for _, name := range b.spaceOrder {
		def.Define(name)
	}

	cinfoNodes := make(map[int]*policytree.Node)
	nextCinfo := 1

	trees := make(map[string]*policytree.Tree, len(b.trees))
	for name, tb := range b.trees {
		tree, err := tb.Build(def, cinfoNodes, &nextCinfo)
		if err != nil {
			return nil, err
		}
		trees[name] = tree
	}

	eventHandlers := make(map[string][]*handler.EventHandler, len(b.eventHandlers))
	for event, builders := range b.eventHandlers {
		for _, eb := range builders {
			eh, err := eb.Build(def)
			if err != nil {
				return nil, err
			}
			eventHandlers[event] = append(eventHandlers[event], eh)
		}
	}

	return &Config{
		trees:          trees,
		cinfoNodes:     cinfoNodes,
		eventHandlers:  eventHandlers,
		nameToSpaceBit: def.NameToID(),
		spaceBitToName: def.IDToName(),
	}, nil
}
