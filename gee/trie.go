package gee

import "strings"

// node 路由前缀树的一层。part 是路径里的一段，pattern 只在路由终点上非空。
type node struct {
	pattern  string
	part     string
	children []*node
	isWild   bool // part 以 : 或 * 开头
}

func (n *node) matchChild(part string) *node {
	for _, child := range n.children {
		if child.part == part {
			return child
		}
	}
	return nil
}

// matchChildren 静态子节点排在通配子节点前面，查找时静态路由优先
func (n *node) matchChildren(part string) []*node {
	nodes := make([]*node, 0, 2)
	for _, child := range n.children {
		if !child.isWild && child.part == part {
			nodes = append(nodes, child)
		}
	}
	for _, child := range n.children {
		if child.isWild {
			nodes = append(nodes, child)
		}
	}
	return nodes
}

// insert 同一层只允许一个通配段，/:agent/x 和 /:code/y 这种写法会 panic
func (n *node) insert(pattern string, parts []string, height int) {
	if len(parts) == height {
		if n.pattern != "" && n.pattern != pattern {
			panic("gee: route " + pattern + " conflicts with " + n.pattern)
		}
		n.pattern = pattern
		return
	}
	part := parts[height]
	child := n.matchChild(part)
	if child == nil {
		wild := part[0] == ':' || part[0] == '*'
		if wild {
			for _, c := range n.children {
				if c.isWild {
					panic("gee: wildcard " + part + " in " + pattern + " conflicts with " + c.part)
				}
			}
		}
		child = &node{part: part, isWild: wild}
		n.children = append(n.children, child)
	}
	child.insert(pattern, parts, height+1)
}

func (n *node) search(parts []string, height int) *node {
	if len(parts) == height || strings.HasPrefix(n.part, "*") {
		if n.pattern == "" {
			return nil
		}
		return n
	}

	for _, child := range n.matchChildren(parts[height]) {
		if result := child.search(parts, height+1); result != nil {
			return result
		}
	}
	return nil
}
