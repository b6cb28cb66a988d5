package discovery

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"mcqsolver/internal/dom"
)

// MinContainerText is the trimmed text length a container must exceed to be
// considered as holding question text and not only the inputs.
const MinContainerText = 20

var identRe = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// Detection is the outcome of heuristic container detection.
type Detection[N comparable] struct {
	Containers []N
	// Selector describes all containers, "" when none could be derived.
	Selector string
}

// Detect groups exclusive-choice inputs by name, lifts each group's lowest
// common ancestor to the nearest good container and derives a selector for
// the resulting set. ok is false when the tree holds no named radio.
func Detect[N comparable](t dom.Tree[N], root N) (Detection[N], bool) {
	groups := radioGroups(t, root)
	if len(groups) == 0 {
		return Detection[N]{}, false
	}

	seen := make(map[N]struct{}, len(groups))
	var containers []N
	for _, members := range groups {
		lca, ok := dom.LowestCommonAncestor(t, members)
		if !ok {
			continue
		}
		c := liftToContainer(t, lca)
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		containers = append(containers, c)
	}
	if len(containers) == 0 {
		return Detection[N]{}, false
	}
	return Detection[N]{Containers: containers, Selector: DeriveSelector(t, containers)}, true
}

func isRadio[N comparable](t dom.Tree[N], n N) bool {
	if t.Tag(n) != "input" {
		return false
	}
	typ, _ := t.Attr(n, "type")
	return strings.EqualFold(strings.TrimSpace(typ), "radio")
}

// radioGroups returns radios keyed by name in order of first appearance.
// Radios without a name carry no grouping key and are skipped.
func radioGroups[N comparable](t dom.Tree[N], root N) [][]N {
	index := map[string]int{}
	var groups [][]N
	dom.Walk(t, root, func(n N) bool {
		if !isRadio(t, n) {
			return true
		}
		name, _ := t.Attr(n, "name")
		name = strings.TrimSpace(name)
		if name == "" {
			return true
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], n)
		return true
	})
	return groups
}

func countRadios[N comparable](t dom.Tree[N], n N) int {
	count := 0
	dom.Walk(t, n, func(x N) bool {
		if isRadio(t, x) {
			count++
		}
		return true
	})
	return count
}

func goodContainer[N comparable](t dom.Tree[N], n N) bool {
	if countRadios(t, n) < 2 {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(t.Text(n))) > MinContainerText
}

// liftToContainer walks up from n to the first good container. The starting
// node is returned when no ancestor qualifies.
func liftToContainer[N comparable](t dom.Tree[N], n N) N {
	for cur := n; ; {
		if t.Tag(cur) != "" && goodContainer(t, cur) {
			return cur
		}
		p, ok := t.Parent(cur)
		if !ok {
			return n
		}
		cur = p
	}
}

// DeriveSelector prefers a class carried by every container and falls back
// to the most frequent tag name. Ties go to the tag seen first. The result
// is not checked for over-matching.
func DeriveSelector[N comparable](t dom.Tree[N], containers []N) string {
	if len(containers) == 0 {
		return ""
	}
	classSets := make([]map[string]struct{}, len(containers))
	for i, c := range containers {
		classSets[i] = map[string]struct{}{}
		for _, cls := range classesOf(t, c) {
			classSets[i][cls] = struct{}{}
		}
	}
	for _, cls := range classesOf(t, containers[0]) {
		if !identRe.MatchString(cls) {
			continue
		}
		shared := true
		for _, set := range classSets[1:] {
			if _, ok := set[cls]; !ok {
				shared = false
				break
			}
		}
		if shared {
			return "." + cls
		}
	}

	counts := map[string]int{}
	var order []string
	for _, c := range containers {
		tag := t.Tag(c)
		if tag == "" {
			continue
		}
		if counts[tag] == 0 {
			order = append(order, tag)
		}
		counts[tag]++
	}
	best := ""
	for _, tag := range order {
		if best == "" || counts[tag] > counts[best] {
			best = tag
		}
	}
	return best
}

func classesOf[N comparable](t dom.Tree[N], n N) []string {
	v, _ := t.Attr(n, "class")
	return strings.Fields(v)
}
