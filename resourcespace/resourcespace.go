// Package resourcespace implements the server's routing tree (§3 Data
// Model "Resource Space"): a tree of path segments where each node either
// holds a handler or a mapping of child segments to subspaces, never
// both. Registration and unregistration are the only mutating operations;
// resolution walks the tree consuming segments until it hits a handler or
// runs out of tree.
//
// The tree has no locking of its own — it is protected by the server's own
// lock S (§5 Locking discipline), the same way the teacher pack's
// registries are protected by their owning package's mutex rather than
// their own.
package resourcespace

import "github.com/intuitivelabs/httpcore/httpmsg"

// Request is the self-contained view of a completed, routable request a
// Handler receives — materialized out of the parser's buffer-relative
// httpmsg.Message so a Handler never has to reason about the reassembly
// buffer's lifetime (§4.4 step 3: "replace the target's path with the
// residual segments and invoke the handler").
type Request struct {
	Method  httpmsg.Method
	Target  string
	Path    []string // residual path segments past the matched resource
	Headers *httpmsg.Headers
	Body    []byte
}

// Response is what a Handler returns; the server serializes it with
// httpmsg.SerializeResponse.
type Response struct {
	StatusCode uint16
	Reason     string
	Headers    *httpmsg.Headers
	Body       []byte
}

// Handler answers a request whose target path matched a registered
// resource. residual holds the path segments past the matched prefix
// (also available as req.Path).
type Handler func(req *Request, residual []string) *Response

// node is one segment of the tree. The parent edge is non-owning (a plain
// pointer, never walked for ownership/GC purposes beyond collapse); the
// children map is the owning edge, per Design Notes "Resource-space tree".
type node struct {
	name     string
	handler  Handler
	children map[string]*node
	parent   *node
}

func (n *node) isLeaf() bool { return n.handler != nil }

func (n *node) isEmpty() bool { return n.handler == nil && len(n.children) == 0 }

// Tree is the resource-space root.
type Tree struct {
	root *node
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{root: &node{children: make(map[string]*node)}}
}

// Register installs handler at the exact path named by segments. It fails
// (returns nil, false) if a handler already sits at any prefix of the path
// (that node is already a leaf) or if the terminal node already carries
// children — both are "conflicting registration" per §4.4. The returned
// unregister function removes the leaf and collapses any ancestor chain
// that becomes childless, up to the first ancestor still holding a
// sibling, or to the root (cleared, never deleted, if it ends up empty).
func (t *Tree) Register(segments []string, handler Handler) (unregister func(), ok bool) {
	if handler == nil {
		return nil, false
	}
	cur := t.root
	for _, seg := range segments {
		if cur.isLeaf() {
			return nil, false
		}
		next, exists := cur.children[seg]
		if !exists {
			next = &node{parent: cur, children: make(map[string]*node)}
			cur.children[seg] = next
		}
		cur = next
	}
	if cur.isLeaf() || len(cur.children) > 0 {
		return nil, false
	}
	cur.handler = handler
	leaf := cur
	return func() { t.unregister(leaf) }, true
}

// unregister clears leaf's handler and collapses the now-empty ancestor
// chain upward, stopping at the first ancestor that still has a sibling
// child (or at the root, which is only ever cleared, never detached).
func (t *Tree) unregister(leaf *node) {
	leaf.handler = nil
	cur := leaf
	for cur.parent != nil && cur.isEmpty() {
		parent := cur.parent
		for name, child := range parent.children {
			if child == cur {
				delete(parent.children, name)
				break
			}
		}
		cur = parent
	}
}

// Resolve walks segments from the root, consuming path components until it
// finds a handler node or runs out of matching children. It returns the
// handler found (nil if none) and the residual segments past the match —
// the suffix a hit handler should see as its own sub-path, per §8
// "Routing stability".
func (t *Tree) Resolve(segments []string) (Handler, []string) {
	cur := t.root
	for i, seg := range segments {
		if cur.isLeaf() {
			return cur.handler, segments[i:]
		}
		next, exists := cur.children[seg]
		if !exists {
			return nil, nil
		}
		cur = next
	}
	if cur.isLeaf() {
		return cur.handler, nil
	}
	return nil, nil
}
