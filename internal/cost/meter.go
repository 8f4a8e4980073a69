package cost

import "sync"

// Usage is the token consumption of a single model call.
type Usage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	CacheWrite   int64
	CacheRead    int64
}

// Total returns all tokens billed for the call.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheWrite + u.CacheRead
}

// Meter accumulates token usage across a run and prices it.
type Meter struct {
	mu         sync.Mutex
	calc       *Calculator
	calls      int
	tokens     int64
	jinaTokens int64
	cost       float64
}

// NewMeter creates a Meter that prices usage with calc.
func NewMeter(calc *Calculator) *Meter {
	return &Meter{calc: calc}
}

// AddModel records one model call.
func (m *Meter) AddModel(u Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.tokens += u.Total()
	if m.calc != nil {
		m.cost += m.calc.Claude(u.Model, u.InputTokens, u.OutputTokens, u.CacheWrite, u.CacheRead)
	}
}

// AddJina records Reader tokens consumed by a page fetch.
func (m *Meter) AddJina(tokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jinaTokens += tokens
	if m.calc != nil {
		m.cost += m.calc.Jina(tokens)
	}
}

// Snapshot is a point-in-time view of a Meter.
type Snapshot struct {
	Calls       int
	TotalTokens int64
	JinaTokens  int64
	Cost        float64
}

// Snapshot returns the accumulated totals.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Calls:       m.calls,
		TotalTokens: m.tokens,
		JinaTokens:  m.jinaTokens,
		Cost:        m.cost,
	}
}
