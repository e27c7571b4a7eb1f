package syntax

import (
	"github.com/emirpasic/gods/stacks/arraystack"
)

// Tree walking uses an explicit stack, so deeply nested programs do not
// translate into deep Go call stacks.

// Walk visits the nodes of a tree in pre-order. If visit returns false, the
// children of the node are skipped.
func Walk(root *Node, visit func(*Node) bool) {
	if root == nil {
		return
	}
	stack := arraystack.New()
	stack.Push(root)
	for !stack.Empty() {
		top, _ := stack.Pop()
		n := top.(*Node)
		if !visit(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- { // leftmost child on top
			stack.Push(n.Children[i])
		}
	}
}

type visitMark struct {
	node *Node
	exit bool
}

// Traverse visits the nodes of a tree in pre-order, calling enter when a node is
// reached and exit after all of its children have been visited. If enter returns
// false, neither the children nor exit are visited for this node.
// Either callback may be nil.
func Traverse(root *Node, enter func(*Node) bool, exit func(*Node)) {
	if root == nil {
		return
	}
	stack := arraystack.New()
	stack.Push(visitMark{node: root})
	for !stack.Empty() {
		top, _ := stack.Pop()
		mark := top.(visitMark)
		if mark.exit {
			if exit != nil {
				exit(mark.node)
			}
			continue
		}
		if enter != nil && !enter(mark.node) {
			continue
		}
		stack.Push(visitMark{node: mark.node, exit: true})
		for i := len(mark.node.Children) - 1; i >= 0; i-- {
			stack.Push(visitMark{node: mark.node.Children[i]})
		}
	}
}

// PostOrder visits the nodes of a tree bottom-up, children before parents.
func PostOrder(root *Node, visit func(*Node)) {
	Traverse(root, nil, visit)
}

// RangeOf walks the nodes belonging to the range of scope without descending into
// nested ranges. The nodes introducing nested ranges are visited themselves.
func RangeOf(scope *Node, visit func(*Node)) {
	for _, ch := range scope.Children {
		Walk(ch, func(n *Node) bool {
			visit(n)
			return !n.NewLevel
		})
	}
}
