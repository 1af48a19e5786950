package instantiate

import "strconv"

// uniqueNames hands out wire and submodule names that are unique within one
// instance.
type uniqueNames struct {
	used map[string]struct{}
	next int
}

func newUniqueNames() *uniqueNames {
	return &uniqueNames{used: make(map[string]struct{})}
}

// get returns name, or name_2, name_3 and so on when it was taken.
func (n *uniqueNames) get(name string) string {
	if _, taken := n.used[name]; !taken {
		n.used[name] = struct{}{}
		return name
	}
	for i := 2; ; i++ {
		c := name + "_" + strconv.Itoa(i)
		if _, taken := n.used[c]; !taken {
			n.used[c] = struct{}{}
			return c
		}
	}
}

// auto names a wire the source did not name.
func (n *uniqueNames) auto() string {
	n.next++
	return n.get("_" + strconv.Itoa(n.next))
}

// anon names an unnamed submodule after its module.
func (n *uniqueNames) anon(module string) string {
	return n.get(module)
}
