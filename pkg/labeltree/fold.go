// Package labeltree implements the dotted-key-to-nested-map folding
// algorithm referenced in spec.md §9 ("Label-tree folding ... implement
// once with clear conflict semantics and reuse"). Its only caller is the
// docker-compose ingestor, which folds each service's traefik.* labels to
// detect scalar/tree conflicts and to warn about top-level keys that
// github.com/traefik/paerser's stricter decoder does not cover.
package labeltree

import (
	"fmt"
	"sort"
	"strings"
)

// Node is one level of the folded tree: either a Leaf holding a scalar
// value, or Children holding nested keys. A Node is never both — that
// conflict is reported by Fold instead of silently picked between.
type Node struct {
	Leaf     string
	IsLeaf   bool
	Children map[string]*Node
}

func newBranch() *Node {
	return &Node{Children: make(map[string]*Node)}
}

// ConflictError reports that the same dotted path was used both as a
// scalar and as a parent of further keys, which spec.md §4.3 requires to
// be treated as an error rather than resolved by precedence.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("label path %q is used as both a scalar value and a nested key", e.Path)
}

// Fold splits every key in labels on '.' and builds a nested Node tree,
// keeping only keys with the given prefix (dot included, e.g.
// "traefik."); the prefix itself is stripped before folding. Keys without
// the prefix are ignored, matching the ingestor's "unknown fields are
// warned, never fatal" contract at a higher layer (pkg/ingest).
func Fold(labels map[string]string, prefix string) (*Node, error) {
	root := newBranch()

	keys := make([]string, 0, len(labels))
	for k := range labels {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		if rest == "" {
			continue
		}
		parts := strings.Split(rest, ".")
		if err := insert(root, parts, labels[key], key); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func insert(node *Node, parts []string, value, fullPath string) error {
	if node.IsLeaf {
		return &ConflictError{Path: fullPath}
	}
	if len(parts) == 1 {
		if child, exists := node.Children[parts[0]]; exists && len(child.Children) > 0 {
			return &ConflictError{Path: fullPath}
		}
		node.Children[parts[0]] = &Node{Leaf: value, IsLeaf: true}
		return nil
	}

	head, tail := parts[0], parts[1:]
	child, exists := node.Children[head]
	if !exists {
		child = newBranch()
		node.Children[head] = child
	}
	if child.IsLeaf {
		return &ConflictError{Path: fullPath}
	}
	return insert(child, tail, value, fullPath)
}

// Get walks dotted path components under node and returns the leaf value
// found there, if any.
func (n *Node) Get(path ...string) (string, bool) {
	cur := n
	for _, p := range path {
		if cur == nil || cur.IsLeaf {
			return "", false
		}
		next, ok := cur.Children[p]
		if !ok {
			return "", false
		}
		cur = next
	}
	if cur == nil || !cur.IsLeaf {
		return "", false
	}
	return cur.Leaf, true
}

// Keys returns the sorted set of immediate child keys under node, e.g. the
// set of router ids under "http.routers".
func (n *Node) Keys() []string {
	if n == nil {
		return nil
	}
	keys := make([]string, 0, len(n.Children))
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Child returns the nested Node at the given immediate key, or nil.
func (n *Node) Child(key string) *Node {
	if n == nil || n.IsLeaf {
		return nil
	}
	return n.Children[key]
}
