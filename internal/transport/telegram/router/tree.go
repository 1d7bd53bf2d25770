package router

import (
	"maps"
	"slices"
	"strings"
)

// cmdNode is one token of a command route. Interior nodes may also carry
// a command ("list 0_500" alongside "list 0_500 final").
type cmdNode struct {
	cmd      *Command
	children map[string]*cmdNode
}

func newRoot() *cmdNode { return &cmdNode{children: map[string]*cmdNode{}} }

func splitRoute(route string) []string { return strings.Fields(route) }

func (n *cmdNode) add(route []string, c Command) {
	for _, tok := range route {
		next, ok := n.children[tok]
		if !ok {
			next = newRoot()
			n.children[tok] = next
		}
		n = next
	}
	n.cmd = &c
}

// find returns the node at path, or nil.
func (n *cmdNode) find(path []string) *cmdNode {
	for _, tok := range path {
		if n = n.children[tok]; n == nil {
			return nil
		}
	}
	return n
}

func (n *cmdNode) child(name string) (*cmdNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *cmdNode) childNames() []string { return slices.Sorted(maps.Keys(n.children)) }

type leafCmd struct {
	route []string
	cmd   *Command
}

// leaves returns every command at or below n in route order. prefix is
// n's own route.
func (n *cmdNode) leaves(prefix []string) []leafCmd {
	var out []leafCmd
	var walk func(n *cmdNode, route []string)
	walk = func(n *cmdNode, route []string) {
		if n.cmd != nil {
			out = append(out, leafCmd{route: route, cmd: n.cmd})
		}
		for _, name := range n.childNames() {
			walk(n.children[name], append(append([]string(nil), route...), name))
		}
	}
	walk(n, prefix)
	return out
}
