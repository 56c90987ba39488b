package mirpass

import "github.com/cairo-m/compiler/internal/mir"

func successors(fn *mir.MirFunction, b mir.BlockId) []mir.BlockId {
	t := fn.Block(b).Terminator
	switch t.Kind {
	case mir.TGoto:
		return []mir.BlockId{t.Target}
	case mir.TIf:
		return []mir.BlockId{t.Then, t.Else}
	default:
		return nil
	}
}

// domInfo holds a function's CFG dominance facts: reverse-postorder block
// list, immediate dominators, predecessor sets, and dominance frontiers.
// Grounded on the classic Cooper/Harvey/Kennedy iterative dominance
// algorithm (chosen over Lengauer-Tarjan for simplicity; function sizes
// here never warrant the asymptotically faster version).
type domInfo struct {
	rpo   []mir.BlockId
	idom  map[mir.BlockId]mir.BlockId
	preds map[mir.BlockId][]mir.BlockId
	df    map[mir.BlockId][]mir.BlockId
	kids  map[mir.BlockId][]mir.BlockId
}

func computeDominance(fn *mir.MirFunction) *domInfo {
	entry := fn.EntryBlock
	visited := map[mir.BlockId]bool{}
	var post []mir.BlockId
	var dfs func(mir.BlockId)
	dfs = func(b mir.BlockId) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range successors(fn, b) {
			dfs(s)
		}
		post = append(post, b)
	}
	dfs(entry)

	rpo := make([]mir.BlockId, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	rpoIndex := map[mir.BlockId]int{}
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	preds := map[mir.BlockId][]mir.BlockId{}
	for i := range fn.Blocks {
		b := mir.BlockId(i)
		if !visited[b] {
			continue
		}
		for _, s := range successors(fn, b) {
			preds[s] = append(preds[s], b)
		}
	}

	idom := map[mir.BlockId]mir.BlockId{entry: entry}
	intersect := func(b1, b2 mir.BlockId) mir.BlockId {
		for b1 != b2 {
			for rpoIndex[b1] > rpoIndex[b2] {
				b1 = idom[b1]
			}
			for rpoIndex[b2] > rpoIndex[b1] {
				b2 = idom[b2]
			}
		}
		return b1
	}
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom mir.BlockId
			set := false
			for _, p := range preds[b] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !set {
					newIdom, set = p, true
					continue
				}
				newIdom = intersect(newIdom, p)
			}
			if !set {
				continue
			}
			if old, ok := idom[b]; !ok || old != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	df := map[mir.BlockId][]mir.BlockId{}
	for _, b := range rpo {
		ps := preds[b]
		if len(ps) < 2 {
			continue
		}
		for _, p := range ps {
			if _, ok := idom[p]; !ok {
				continue
			}
			runner := p
			for runner != idom[b] {
				df[runner] = appendUniqueBlock(df[runner], b)
				next, ok := idom[runner]
				if !ok || next == runner {
					break
				}
				runner = next
			}
		}
	}

	kids := map[mir.BlockId][]mir.BlockId{}
	for _, b := range rpo {
		if b == entry {
			continue
		}
		if p, ok := idom[b]; ok {
			kids[p] = append(kids[p], b)
		}
	}

	return &domInfo{rpo: rpo, idom: idom, preds: preds, df: df, kids: kids}
}

func appendUniqueBlock(xs []mir.BlockId, b mir.BlockId) []mir.BlockId {
	for _, x := range xs {
		if x == b {
			return xs
		}
	}
	return append(xs, b)
}
