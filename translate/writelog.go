package translate

// WriteLog records the registers written by a packet in first-write order.
// Each register appears at most once.
type WriteLog[R RegIndex] struct {
	order []R
	seen  RegSet[R]
}

// Log appends r unless it is already present and reports whether it was
// added.
func (l *WriteLog[R]) Log(r R) bool {
	if l.seen.Has(r) {
		return false
	}
	l.seen.Add(r)
	l.order = append(l.order, r)
	return true
}

// Contains reports whether r has been logged.
func (l *WriteLog[R]) Contains(r R) bool {
	return l.seen.Has(r)
}

// Len returns the number of logged registers.
func (l *WriteLog[R]) Len() int {
	return len(l.order)
}

// Regs returns the logged registers in log order.
func (l *WriteLog[R]) Regs() []R {
	return l.order
}
