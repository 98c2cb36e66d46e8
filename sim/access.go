package sim

import "fmt"

// AccessGuard is the state machine that catches reentrant access to kernel
// state: a callback invoked while a mutation is in flight (a partition label
// function, say) that tries to read or write through the public surface again.
//
// Any number of nested reads may be open at once, or a single write, never
// both. The two global locks are set by the kernel around bootstrap and
// teardown. Every failing call leaves the guard untouched.
type AccessGuard struct {
	globalReadLocked  bool
	globalWriteLocked bool
	writing           bool
	readDepth         int
}

// NewAccessGuard returns an unlocked guard with nothing open.
func NewAccessGuard() *AccessGuard {
	return &AccessGuard{}
}

// AcquireRead opens a read. It fails while reads are locked or a write is open.
func (g *AccessGuard) AcquireRead() error {
	if g.globalReadLocked {
		return fmt.Errorf("%w: reads are globally locked", ErrAccessDenied)
	}
	if g.writing {
		return fmt.Errorf("%w: read attempted during a write", ErrAccessDenied)
	}
	g.readDepth++
	return nil
}

// ReleaseRead closes the innermost open read.
func (g *AccessGuard) ReleaseRead() error {
	if g.readDepth == 0 {
		return fmt.Errorf("%w: read released without a matching acquire", ErrAccessDenied)
	}
	g.readDepth--
	return nil
}

// AcquireWrite opens the single write. It fails while writes are locked or
// anything else is open.
func (g *AccessGuard) AcquireWrite() error {
	switch {
	case g.globalWriteLocked:
		return fmt.Errorf("%w: writes are globally locked", ErrAccessDenied)
	case g.writing:
		return fmt.Errorf("%w: write attempted during a write", ErrAccessDenied)
	case g.readDepth > 0:
		return fmt.Errorf("%w: write attempted during %d open read(s)", ErrAccessDenied, g.readDepth)
	}
	g.writing = true
	return nil
}

// ReleaseWrite closes the open write.
func (g *AccessGuard) ReleaseWrite() error {
	if !g.writing {
		return fmt.Errorf("%w: write released without a matching acquire", ErrAccessDenied)
	}
	g.writing = false
	return nil
}

// LockGlobalRead bars every read until UnlockGlobalRead.
func (g *AccessGuard) LockGlobalRead() error {
	if g.globalReadLocked {
		return fmt.Errorf("%w: reads already globally locked", ErrAccessDenied)
	}
	g.globalReadLocked = true
	return nil
}

// UnlockGlobalRead lifts the global read lock.
func (g *AccessGuard) UnlockGlobalRead() error {
	if !g.globalReadLocked {
		return fmt.Errorf("%w: reads are not globally locked", ErrAccessDenied)
	}
	g.globalReadLocked = false
	return nil
}

// LockGlobalWrite bars every write until UnlockGlobalWrite.
func (g *AccessGuard) LockGlobalWrite() error {
	if g.globalWriteLocked {
		return fmt.Errorf("%w: writes already globally locked", ErrAccessDenied)
	}
	g.globalWriteLocked = true
	return nil
}

// UnlockGlobalWrite lifts the global write lock.
func (g *AccessGuard) UnlockGlobalWrite() error {
	if !g.globalWriteLocked {
		return fmt.Errorf("%w: writes are not globally locked", ErrAccessDenied)
	}
	g.globalWriteLocked = false
	return nil
}

// Writing reports whether a write is in flight.
func (g *AccessGuard) Writing() bool { return g.writing }

// ReadDepth returns the number of open reads.
func (g *AccessGuard) ReadDepth() int { return g.readDepth }
