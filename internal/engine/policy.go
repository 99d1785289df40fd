package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ActionSelector picks an action for a joint state.
type ActionSelector interface {
	SelectAction(s StateIndex) Direction
}

// Policy is the greedy view of a QTable: for every state pair, the action with
// the highest value, ties resolved by the lowest action index.
type Policy struct {
	thief   int
	actions []Direction
}

// ExtractPolicy computes the greedy policy of table. The table is not modified.
func ExtractPolicy(table *QTable) Policy {
	snapshot := table.Clone()
	police, thief, _ := snapshot.Dims()
	actions := make([]Direction, police*thief)
	for p := 0; p < police; p++ {
		for t := 0; t < thief; t++ {
			s := StateIndex{Police: p, Thief: t}
			actions[p*thief+t] = Direction(snapshot.BestAction(s))
		}
	}
	return Policy{thief: thief, actions: actions}
}

// SelectAction implements ActionSelector.
func (p Policy) SelectAction(s StateIndex) Direction {
	return p.actions[s.Police*p.thief+s.Thief]
}

// Len is the number of state pairs covered.
func (p Policy) Len() int { return len(p.actions) }

// RandomPolicy picks uniformly among the four moves.
type RandomPolicy struct {
	rng *rand.Rand
}

func NewRandomPolicy(rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{rng: rng}
}

// SelectAction implements ActionSelector.
func (r *RandomPolicy) SelectAction(StateIndex) Direction {
	return Directions[r.rng.Intn(NumActions)]
}

// softmax writes exp(v_i) / sum_j exp(v_j) into probs. The sum is taken in log
// space so large values do not overflow. When the inputs or the result are not
// finite, probs becomes uniform and degenerate is true.
func softmax(values, probs []float64) (degenerate bool) {
	uniform := func() bool {
		for i := range probs {
			probs[i] = 1 / float64(len(probs))
		}
		return true
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return uniform()
		}
	}
	lse := floats.LogSumExp(values)
	if math.IsNaN(lse) || math.IsInf(lse, 0) {
		return uniform()
	}
	sum := 0.0
	for i, v := range values {
		probs[i] = math.Exp(v - lse)
		sum += probs[i]
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return uniform()
	}
	floats.Scale(1/sum, probs)
	return false
}

// sample draws an index from the distribution probs.
func sample(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if u < cumulative {
			return i
		}
	}
	return len(probs) - 1
}
