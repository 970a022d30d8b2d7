package membership

// SetBetweenWrites installs f to run after the first write of a
// multi-collection operation.
func (e *Engine) SetBetweenWrites(f func()) { e.betweenWrites = f }
