package engine

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// QTable holds one value per (police state, thief state, action).
// Update serialises the read-modify-write so several trainers may share a table.
type QTable struct {
	mu      sync.Mutex
	police  int
	thief   int
	actions int
	data    []float64
}

// NewQTable returns a zero-initialised table.
func NewQTable(police, thief, actions int) *QTable {
	return &QTable{police: police, thief: thief, actions: actions, data: make([]float64, police*thief*actions)}
}

// QTableFromData wraps existing values, e.g. after loading from storage.
func QTableFromData(police, thief, actions int, data []float64) (*QTable, error) {
	if police <= 0 || thief <= 0 || actions <= 0 {
		return nil, fmt.Errorf("%w: table dimensions %dx%dx%d", ErrPreconditionViolation, police, thief, actions)
	}
	if len(data) != police*thief*actions {
		return nil, fmt.Errorf("%w: table data has %d values, want %d", ErrPreconditionViolation, len(data), police*thief*actions)
	}
	return &QTable{police: police, thief: thief, actions: actions, data: data}, nil
}

// Dims returns the table dimensions.
func (q *QTable) Dims() (int, int, int) {
	return q.police, q.thief, q.actions
}

// Data exposes the flat backing slice in (police, thief, action) row-major order.
func (q *QTable) Data() []float64 {
	return q.data
}

func (q *QTable) offset(s StateIndex) int {
	return (s.Police*q.thief + s.Thief) * q.actions
}

func (q *QTable) Get(s StateIndex, action int) float64 {
	return q.data[q.offset(s)+action]
}

func (q *QTable) Set(s StateIndex, action int, value float64) {
	q.data[q.offset(s)+action] = value
}

// Row returns the action values of s. The slice aliases the table.
func (q *QTable) Row(s StateIndex) []float64 {
	off := q.offset(s)
	return q.data[off : off+q.actions]
}

// Values copies the action values of s into dst under the table lock.
func (q *QTable) Values(s StateIndex, dst []float64) []float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append(dst[:0], q.Row(s)...)
}

// MaxValue is max over actions of Q[s].
func (q *QTable) MaxValue(s StateIndex) float64 {
	return floats.Max(q.Row(s))
}

// BestAction is the argmax of Q[s]; ties go to the lowest action index.
func (q *QTable) BestAction(s StateIndex) int {
	return floats.MaxIdx(q.Row(s))
}

// Update applies Q[s][a] += eta * (reward + gamma * max Q[next] - Q[s][a]) and returns the new value.
func (q *QTable) Update(s StateIndex, action int, reward float64, next StateIndex, eta, gamma float64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	current := q.Get(s, action)
	target := reward + gamma*q.MaxValue(next)
	updated := current + eta*(target-current)
	q.Set(s, action, updated)
	return updated
}

// Clone returns a deep copy.
func (q *QTable) Clone() *QTable {
	q.mu.Lock()
	defer q.mu.Unlock()
	data := make([]float64, len(q.data))
	copy(data, q.data)
	return &QTable{police: q.police, thief: q.thief, actions: q.actions, data: data}
}
