// Package dom abstracts the page tree so discovery can run against a live
// snapshot or a synthetic fixture.
package dom

// Tree exposes the read-only navigation discovery needs.
type Tree[N comparable] interface {
	Parent(n N) (N, bool)
	Children(n N) []N
	Tag(n N) string
	Attr(n N, key string) (string, bool)
	// Text returns the visible text of the subtree rooted at n.
	Text(n N) string
}

// Ancestors returns the chain from the root down to n, n included.
func Ancestors[N comparable](t Tree[N], n N) []N {
	chain := []N{n}
	for cur := n; ; {
		p, ok := t.Parent(cur)
		if !ok {
			break
		}
		chain = append(chain, p)
		cur = p
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// LowestCommonAncestor compares the root-to-node chains of every node and
// returns the last node shared by all of them.
func LowestCommonAncestor[N comparable](t Tree[N], nodes []N) (N, bool) {
	var zero N
	if len(nodes) == 0 {
		return zero, false
	}
	common := Ancestors(t, nodes[0])
	for _, n := range nodes[1:] {
		chain := Ancestors(t, n)
		i := 0
		for i < len(common) && i < len(chain) && common[i] == chain[i] {
			i++
		}
		common = common[:i]
		if len(common) == 0 {
			return zero, false
		}
	}
	return common[len(common)-1], true
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func Walk[N comparable](t Tree[N], n N, fn func(N) bool) {
	if !fn(n) {
		return
	}
	for _, c := range t.Children(n) {
		Walk(t, c, fn)
	}
}
