package bot

import "sync"

// userLocks hands out one mutex per user id. An entry lives only while
// someone holds or waits for it, so idle users cost nothing.
type userLocks struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until userID's lock is held and returns its release func.
func (l *userLocks) lock(userID int64) (unlock func()) {
	l.mu.Lock()
	if l.users == nil {
		l.users = make(map[int64]*userLock)
	}
	ul, ok := l.users[userID]
	if !ok {
		ul = &userLock{}
		l.users[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}
