package storypager

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// OpKind is the kind of a list update.
type OpKind int

const (
	OpRemove OpKind = iota + 1
	OpInsert
	OpMove
	OpChange
)

func (k OpKind) String() string {
	switch k {
	case OpRemove:
		return "remove"
	case OpInsert:
		return "insert"
	case OpMove:
		return "move"
	case OpChange:
		return "change"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one list update. OldIndex is meaningful for removes and moves,
// NewIndex for inserts, moves and changes. Item is the new revision for
// inserts, moves and changes and the removed item for removes.
type Op struct {
	Kind     OpKind
	OldIndex int
	NewIndex int
	Item     Item
}

// Diff computes the update script turning old into new. Items are matched by
// ID along a longest common subsequence (Myers); IDs present in both lists
// outside it become moves, and matched items whose content differs also get
// a change.
//
// Ops are ordered for ApplyDiff: removes by descending OldIndex, then inserts
// and moves by ascending NewIndex, then changes by ascending NewIndex.
// Both lists must have unique IDs, which Snapshot guarantees.
func Diff(old, new []Item) []Op {
	oldIDs := lo.Map(old, func(item Item, _ int) string { return item.ID })
	newIDs := lo.Map(new, func(item Item, _ int) string { return item.ID })

	matchedOld := make([]bool, len(old))
	matchedNew := make([]bool, len(new))

	var changes []Op
	for _, pair := range commonSubsequence(oldIDs, newIDs) {
		matchedOld[pair[0]] = true
		matchedNew[pair[1]] = true
		if !SameContent(old[pair[0]], new[pair[1]]) {
			changes = append(changes, Op{Kind: OpChange, OldIndex: pair[0], NewIndex: pair[1], Item: new[pair[1]]})
		}
	}

	newIndexByID := make(map[string]int, len(new))
	for i, id := range newIDs {
		if !matchedNew[i] {
			newIndexByID[id] = i
		}
	}

	var removes, placements []Op
	movedNew := make(map[int]struct{})
	for i := len(old) - 1; i >= 0; i-- {
		if matchedOld[i] {
			continue
		}

		j, moved := newIndexByID[oldIDs[i]]
		if !moved {
			removes = append(removes, Op{Kind: OpRemove, OldIndex: i, NewIndex: -1, Item: old[i]})
			continue
		}

		movedNew[j] = struct{}{}
		placements = append(placements, Op{Kind: OpMove, OldIndex: i, NewIndex: j, Item: new[j]})
		if !SameContent(old[i], new[j]) {
			changes = append(changes, Op{Kind: OpChange, OldIndex: i, NewIndex: j, Item: new[j]})
		}
	}

	for j := range new {
		if _, moved := movedNew[j]; matchedNew[j] || moved {
			continue
		}
		placements = append(placements, Op{Kind: OpInsert, OldIndex: -1, NewIndex: j, Item: new[j]})
	}

	byNewIndex := func(a, b Op) int { return cmp.Compare(a.NewIndex, b.NewIndex) }
	slices.SortFunc(placements, byNewIndex)
	slices.SortFunc(changes, byNewIndex)

	ops := make([]Op, 0, len(removes)+len(placements)+len(changes))
	ops = append(ops, removes...)
	ops = append(ops, placements...)

	return append(ops, changes...)
}

// ApplyDiff applies ops produced by Diff to old and returns the new list.
// Moves detach their item at OldIndex together with the removes.
func ApplyDiff(old []Item, ops []Op) []Item {
	detached := make(map[int]struct{})
	for _, op := range ops {
		if op.Kind == OpRemove || op.Kind == OpMove {
			detached[op.OldIndex] = struct{}{}
		}
	}

	ret := make([]Item, 0, len(old))
	for i, item := range old {
		if _, ok := detached[i]; !ok {
			ret = append(ret, item)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case OpInsert, OpMove:
			ret = slices.Insert(ret, op.NewIndex, op.Item)
		case OpChange:
			ret[op.NewIndex] = op.Item
		}
	}

	return ret
}

// commonSubsequence returns index pairs (i, j) with a[i] == b[j] forming a
// longest common subsequence, in ascending order. It is Myers' O((N+M)D)
// greedy algorithm with a recorded trace for backtracking.
func commonSubsequence(a, b []string) [][2]int {
	n, m := len(a), len(b)
	maxD := n + m
	if n == 0 || m == 0 {
		return nil
	}

	offset := maxD + 1
	v := make([]int, 2*maxD+3)
	var trace [][]int

search:
	for d := 0; d <= maxD; d++ {
		trace = append(trace, slices.Clone(v))
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break search
			}
		}
	}

	var pairs [][2]int
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		vd := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && vd[offset+k-1] < vd[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vd[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			pairs = append(pairs, [2]int{x, y})
		}
		if d > 0 {
			x, y = prevX, prevY
		}
	}

	slices.Reverse(pairs)

	return pairs
}
