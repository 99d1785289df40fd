package engine

import (
	"errors"
	"math"
	"testing"
)

func TestBellmanUpdate(t *testing.T) {
	q := NewQTable(3, 3, NumActions)
	s := StateIndex{Police: 0, Thief: 1}
	next := StateIndex{Police: 0, Thief: 2}
	q.Set(s, int(Left), 4.0)
	q.Set(next, int(Up), -2.0)
	q.Set(next, int(Down), 7.5)

	eta, gamma, reward := 0.3, 0.9, -1.0
	old := q.Get(s, int(Left))
	got := q.Update(s, int(Left), reward, next, eta, gamma)
	want := old + eta*(reward+gamma*7.5-old)
	if math.Abs(got-want) > 1e-9 || math.Abs(q.Get(s, int(Left))-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, a := range []Direction{Up, Right, Down} {
		if q.Get(s, int(a)) != 0 {
			t.Fatalf("update touched action %s", a)
		}
	}
}

func TestBestActionPrefersLowestIndexOnTies(t *testing.T) {
	q := NewQTable(1, 1, NumActions)
	s := StateIndex{}
	if q.BestAction(s) != int(Up) {
		t.Fatalf("all-zero row should pick the first action")
	}
	q.Set(s, int(Right), 2)
	q.Set(s, int(Left), 2)
	if q.BestAction(s) != int(Right) {
		t.Fatalf("expected right, got %s", Direction(q.BestAction(s)))
	}
}

func TestExtractPolicy(t *testing.T) {
	q := NewQTable(2, 2, NumActions)
	q.Set(StateIndex{Police: 1, Thief: 0}, int(Down), 5)
	q.Set(StateIndex{Police: 0, Thief: 1}, int(Left), -1)
	policy := ExtractPolicy(q)
	if policy.Len() != 4 {
		t.Fatalf("expected 4 states, got %d", policy.Len())
	}
	if got := policy.SelectAction(StateIndex{Police: 1, Thief: 0}); got != Down {
		t.Fatalf("expected down, got %s", got)
	}
	if got := policy.SelectAction(StateIndex{Police: 0, Thief: 1}); got != Up {
		t.Fatalf("expected up (zero beats -1), got %s", got)
	}
}

func TestQTableFromData(t *testing.T) {
	if _, err := QTableFromData(2, 2, 4, make([]float64, 15)); !errors.Is(err, ErrPreconditionViolation) {
		t.Fatalf("expected size mismatch error, got %v", err)
	}
	data := make([]float64, 16)
	data[5] = 3
	q, err := QTableFromData(2, 2, 4, data)
	if err != nil {
		t.Fatalf("from data: %v", err)
	}
	if q.Get(StateIndex{Police: 0, Thief: 1}, 1) != 3 {
		t.Fatalf("unexpected layout of backing data")
	}
	clone := q.Clone()
	clone.Set(StateIndex{}, 0, 9)
	if q.Get(StateIndex{}, 0) != 0 {
		t.Fatalf("clone shares storage")
	}
}
