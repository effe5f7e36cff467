package consensus

import "github.com/tolchain/corechain/models"

// ActiveBlock is a block that has passed validation and whose parents are
// all known and active. It tracks the set of other active blocks it is
// mutually exclusive with, for clique computation.
type ActiveBlock struct {
	Block         *models.Block
	ID            models.BlockId
	Children      map[models.BlockId]bool
	Incompatible  map[models.BlockId]bool // symmetric: b.Incompatible[a] iff a.Incompatible[b]
	Fitness       uint64
}

// parentsIncompatible reports whether a and b can never both belong to
// the final chain. Two rules apply:
//
//  1. Same-thread rule: a thread is a single linear chain, so two blocks
//     assigned to the same thread conflict unless one is an ancestor of
//     the other.
//  2. Grandpa rule: in any thread, if a and b descend from different
//     parents in that thread and neither parent is an ancestor of the
//     other, they conflict. Once two blocks are incompatible this way,
//     every descendant of one is transitively incompatible with every
//     descendant of the other (propagated by activate, not here).
func (g *Graph) parentsIncompatible(a, b *ActiveBlock) bool {
	if a.Block.Header.Slot.Thread == b.Block.Header.Slot.Thread {
		if !g.isAncestor(a.ID, b.ID) && !g.isAncestor(b.ID, a.ID) {
			return true
		}
	}
	for thread := uint8(0); thread < g.threadCount; thread++ {
		pa := a.Block.Header.Parents[thread]
		pb := b.Block.Header.Parents[thread]
		if pa == pb {
			continue
		}
		if g.isAncestor(pa, pb) || g.isAncestor(pb, pa) {
			continue
		}
		return true
	}
	return false
}

// isAncestor reports whether candidate is an ancestor of (or equal to)
// descendant, walking the active-block parent links.
func (g *Graph) isAncestor(candidate, descendant models.BlockId) bool {
	if candidate == descendant {
		return true
	}
	if g.isGenesis(candidate) && g.isGenesis(descendant) {
		return candidate == descendant
	}
	visited := make(map[models.BlockId]bool)
	queue := []models.BlockId{descendant}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == candidate {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		ab, ok := g.activeBlocks[cur]
		if !ok {
			continue
		}
		queue = append(queue, ab.Block.Header.Parents...)
	}
	return false
}

func (g *Graph) isGenesis(id models.BlockId) bool {
	for _, gid := range g.genesisBlocks {
		if gid == id {
			return true
		}
	}
	return false
}

// cliques partitions the current active blocks into maximal sets of
// mutually compatible blocks, using a straightforward Bron-Kerbosch
// search. The active-block count in a live node is kept small by
// finality pruning, so this stays cheap in practice.
func (g *Graph) cliques() [][]models.BlockId {
	all := make([]models.BlockId, 0, len(g.activeBlocks))
	for id := range g.activeBlocks {
		all = append(all, id)
	}
	var result [][]models.BlockId
	g.bronKerbosch(nil, all, nil, &result)
	if len(result) == 0 {
		result = [][]models.BlockId{{}}
	}
	return result
}

func (g *Graph) compatible(a, b models.BlockId) bool {
	if a == b {
		return true
	}
	ab, ok := g.activeBlocks[a]
	if !ok {
		return true
	}
	return !ab.Incompatible[b]
}

func (g *Graph) bronKerbosch(r, p, x []models.BlockId, result *[][]models.BlockId) {
	if len(p) == 0 && len(x) == 0 {
		if len(r) > 0 {
			clique := append([]models.BlockId(nil), r...)
			*result = append(*result, clique)
		}
		return
	}
	pCopy := append([]models.BlockId(nil), p...)
	for _, v := range pCopy {
		neighborsCompatible := func(set []models.BlockId) []models.BlockId {
			var out []models.BlockId
			for _, u := range set {
				if g.compatible(v, u) {
					out = append(out, u)
				}
			}
			return out
		}
		g.bronKerbosch(append(r, v), neighborsCompatible(p), neighborsCompatible(x), result)
		p = removeID(p, v)
		x = append(x, v)
	}
}

func removeID(s []models.BlockId, id models.BlockId) []models.BlockId {
	out := s[:0]
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// cliqueFitness sums the fitness of every block in clique.
func (g *Graph) cliqueFitness(clique []models.BlockId) uint64 {
	var total uint64
	for _, id := range clique {
		if ab, ok := g.activeBlocks[id]; ok {
			total += ab.Fitness
		}
	}
	return total
}

// bestClique returns the clique with the highest fitness and, for
// finality determination, the runner-up's fitness (0 if there is none).
func (g *Graph) bestClique() (best []models.BlockId, bestFitness, secondFitness uint64) {
	for _, c := range g.cliques() {
		f := g.cliqueFitness(c)
		if f > bestFitness {
			secondFitness = bestFitness
			bestFitness = f
			best = c
		} else if f > secondFitness {
			secondFitness = f
		}
	}
	return best, bestFitness, secondFitness
}
