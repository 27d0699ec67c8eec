package workout

import (
	"context"
	"sort"
	"sync"
)

var (
	_ workoutRepo = (*repoMock)(nil)
	_ listRepo    = (*repoMock)(nil)
)

type repoMock struct {
	Sessions map[int]Session
	nextID   int
	mutex    sync.Mutex
}

func NewRepoMock(seed ...Session) *repoMock {
	repo := &repoMock{
		Sessions: map[int]Session{},
		nextID:   1,
	}
	for _, s := range seed {
		repo.saveSeed(s)
	}
	return repo
}

func (r *repoMock) saveSeed(s Session) {
	if s.SessionID == 0 {
		s.SessionID = r.nextID
	}
	if s.SessionID >= r.nextID {
		r.nextID = s.SessionID + 1
	}
	if s.SessionOrder == 0 {
		s.SessionOrder = r.nextOrderLocked(s.LogDate)
	}
	r.Sessions[s.SessionID] = s
}

func (r *repoMock) nextOrderLocked(logDate string) int {
	maxOrder := 0
	for _, s := range r.Sessions {
		if s.LogDate == logDate && s.SessionOrder > maxOrder {
			maxOrder = s.SessionOrder
		}
	}
	return maxOrder + 1
}

func (r *repoMock) Save(_ context.Context, session Session, mode string) (int, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	targetID := 0
	switch mode {
	case EntryModeEdit:
		if _, ok := r.Sessions[session.SessionID]; !ok {
			return 0, false, ErrSessionNotFound
		}
		targetID = session.SessionID
	case EntryModeUpsert:
		if _, ok := r.Sessions[session.SessionID]; ok {
			targetID = session.SessionID
		} else {
			for id, s := range r.Sessions {
				if s.LogDate == session.LogDate && (targetID == 0 || s.SessionOrder < r.Sessions[targetID].SessionOrder) {
					targetID = id
				}
			}
		}
	}

	created := false
	if targetID == 0 {
		targetID = r.nextID
		r.nextID++
		session.SessionOrder = r.nextOrderLocked(session.LogDate)
		created = true
	} else {
		current := r.Sessions[targetID]
		session.SessionOrder = current.SessionOrder
		if current.LogDate != session.LogDate {
			session.SessionOrder = r.nextOrderLocked(session.LogDate)
		}
	}
	session.SessionID = targetID
	for i := range session.Exercises {
		session.Exercises[i].SetOrder = i + 1
		session.Exercises[i].ExerciseID = targetID*100 + i + 1
	}
	r.Sessions[targetID] = session
	return targetID, created, nil
}

func (r *repoMock) Delete(_ context.Context, sessionID int) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	session, ok := r.Sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	delete(r.Sessions, sessionID)
	return session.LogDate, nil
}

func (r *repoMock) ListAll(_ context.Context) ([]Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sessions := make([]Session, 0, len(r.Sessions))
	for _, s := range r.Sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LogDate != sessions[j].LogDate {
			return sessions[i].LogDate < sessions[j].LogDate
		}
		return sessions[i].SessionOrder < sessions[j].SessionOrder
	})
	return sessions, nil
}

func (r *repoMock) CountForDate(_ context.Context, logDate string) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	count := 0
	for _, s := range r.Sessions {
		if s.LogDate == logDate {
			count++
		}
	}
	return count, nil
}

func (r *repoMock) MaxLogDate(_ context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	maxDate := ""
	for _, s := range r.Sessions {
		if s.LogDate > maxDate {
			maxDate = s.LogDate
		}
	}
	return maxDate, nil
}
