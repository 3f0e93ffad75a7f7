// Package simcontext provides the hierarchical name->object directory that
// statistics observers bind themselves under, generalizing the flat
// map-backed registries the teacher uses for its knowledge bases (kb.KnowledgeBase,
// core.KnowledgeBase) to the arbitrary nested paths the spec's Context needs.
package simcontext

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Described is implemented by objects that want to choose their own bound
// name; binding an object that doesn't implement it requires an explicit
// name.
type Described interface {
	Description() string
}

// Context is one directory level in the hierarchy. The zero value is not
// usable; construct with New.
type Context struct {
	mu       sync.Mutex
	name     string
	children map[string]*Context
	objects  map[string]any
}

// New constructs a root context.
func New() *Context {
	return &Context{name: "/", children: make(map[string]*Context), objects: make(map[string]any)}
}

// LookupOrCreateSubContext returns the Context at path, creating any missing
// intermediate directories. path segments are separated by "/"; a leading or
// trailing slash is ignored.
func (c *Context) LookupOrCreateSubContext(path string) *Context {
	segments := splitPath(path)
	cur := c
	for _, seg := range segments {
		cur = cur.childLocked(seg)
	}
	return cur
}

func (c *Context) childLocked(name string) *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if child, ok := c.children[name]; ok {
		return child
	}
	child := &Context{name: name, children: make(map[string]*Context), objects: make(map[string]any)}
	c.children[name] = child
	return child
}

// BindObject binds obj under this context using name, or obj's Description()
// if name is empty and obj implements Described. It returns an error if that
// still leaves no name.
// Re-binding an existing name overwrites the previous binding.
func (c *Context) BindObject(name string, obj any) error {
	if name == "" {
		if d, ok := obj.(Described); ok {
			name = d.Description()
		}
	}
	if name == "" {
		return fmt.Errorf("simcontext: cannot bind object without a name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[name] = obj
	return nil
}

// Lookup returns the object bound under name in this context, if any.
func (c *Context) Lookup(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.objects[name]
	return obj, ok
}

// Names returns the sorted names of objects bound directly in this context.
func (c *Context) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.objects))
	for n := range c.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
