package fxr

import (
	"iter"

	"fxrpatch/pod"
	"fxrpatch/process"
	"fxrpatch/protocol"
)

// Node is one entry of the target's circular FXR definition list
type Node struct {
	Address process.ProcessMemoryAddress
	ID      uint32
	// Wrapper is null for slots without a loaded definition
	Wrapper process.ProcessMemoryAddress
}

// Definition returns the address of the definition the wrapper currently holds
func (n Node) Definition(r process.ProcessRead) (process.ProcessMemoryAddress, error) {
	return r.ReadPOINTER(n.Wrapper + process.ProcessMemoryAddress(wrapperDefinition))
}

// List walks a circular list from its head node. The walk ends when a next
// link comes back around to the head, or at a null link.
type List struct {
	reader Reader
	head   process.ProcessMemoryAddress
	limit  int
}

// Reader is what a list walk needs from a process
type Reader interface {
	process.MemoryAccess
	process.ProcessRead
}

func NewList(r Reader, head process.ProcessMemoryAddress, limit int) *List {
	return &List{reader: r, head: head, limit: limit}
}

func (l *List) Head() process.ProcessMemoryAddress {
	return l.head
}

// Nodes yields every node after the head. Walk stops with an error when a
// read fails or the limit is reached without closing the circle, the error
// is reported through err once the sequence is exhausted.
func (l *List) Nodes(err *error) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		head, e := l.readNode(l.head)
		if e != nil {
			*err = e
			return
		}

		next := head.Next
		for visited := 0; next != l.head && next != 0; visited++ {
			if l.limit > 0 && visited >= l.limit {
				*err = protocol.Errorf(protocol.KindMemoryAccess, "fxr list at %s did not close after %d nodes", l.head.ToString(), l.limit)
				return
			}

			raw, e := l.readNode(next)
			if e != nil {
				*err = e
				return
			}
			if !yield(Node{Address: next, ID: raw.ID, Wrapper: raw.Wrapper}) {
				return
			}
			next = raw.Next
		}
	}
}

func (l *List) readNode(addr process.ProcessMemoryAddress) (listNode, error) {
	n, err := pod.ReadT[listNode](l.reader, addr)
	if err != nil {
		return listNode{}, protocol.Wrap(protocol.KindMemoryAccess, err, "failed to read fxr list node %s", addr.ToString())
	}
	return n, nil
}

// Find returns the first populated node whose id matches
func (l *List) Find(id uint32) (Node, bool, error) {
	var err error
	for n := range l.Nodes(&err) {
		if n.Wrapper == 0 {
			continue
		}
		if n.ID == id {
			return n, true, nil
		}
	}
	return Node{}, false, err
}
