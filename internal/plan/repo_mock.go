package plan

import (
	"context"
	"sort"
	"sync"
)

var (
	_ importerRepo = (*repoMock)(nil)
	_ dayRepo      = (*repoMock)(nil)
	_ planDeleter  = (*repoMock)(nil)
)

type workoutSessionKey struct {
	logDate       string
	planSessionID string
}

type repoMock struct {
	DietDays   map[string]DietDay
	Sessions   map[workoutSessionKey]WorkoutSession
	Adherences map[string]Adherence
	mutex      sync.Mutex
}

func NewRepoMock() *repoMock {
	return &repoMock{
		DietDays:   map[string]DietDay{},
		Sessions:   map[workoutSessionKey]WorkoutSession{},
		Adherences: map[string]Adherence{},
	}
}

func (r *repoMock) UpsertDietDays(_ context.Context, days []DietDay) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, day := range days {
		r.DietDays[day.LogDate] = day
	}
	return nil
}

func (r *repoMock) GetDietDay(_ context.Context, logDate string) (*DietDay, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	day, ok := r.DietDays[logDate]
	if !ok {
		return nil, ErrDietDayNotFound
	}
	return &day, nil
}

func (r *repoMock) ListDietRange(_ context.Context, from, to string) ([]DietDay, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	days := make([]DietDay, 0)
	for date, day := range r.DietDays {
		if date >= from && date <= to {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].LogDate < days[j].LogDate
	})
	return days, nil
}

func (r *repoMock) DeleteDietDay(_ context.Context, logDate string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.DietDays[logDate]; !ok {
		return ErrDietDayNotFound
	}
	delete(r.DietDays, logDate)
	return nil
}

func (r *repoMock) FlushDiet(_ context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	deleted := len(r.DietDays)
	r.DietDays = map[string]DietDay{}
	return deleted, nil
}

func (r *repoMock) ReplaceWorkoutDays(_ context.Context, sessions []WorkoutSession) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	touched := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		touched[session.LogDate] = true
	}
	for key := range r.Sessions {
		if touched[key.logDate] {
			delete(r.Sessions, key)
		}
	}
	for _, session := range sessions {
		r.Sessions[workoutSessionKey{session.LogDate, session.PlanSessionID}] = session
	}
	return nil
}

func (r *repoMock) ListWorkoutDay(_ context.Context, logDate string) ([]WorkoutSession, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sessions := make([]WorkoutSession, 0)
	for key, session := range r.Sessions {
		if key.logDate == logDate {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].PlanSessionID < sessions[j].PlanSessionID
	})
	return sessions, nil
}

func (r *repoMock) WorkoutDates(_ context.Context, from, to string) (map[string]bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	dates := make(map[string]bool)
	for key := range r.Sessions {
		if key.logDate >= from && key.logDate <= to {
			dates[key.logDate] = true
		}
	}
	return dates, nil
}

func (r *repoMock) DeleteWorkoutSession(_ context.Context, logDate, planSessionID string) (int, int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := workoutSessionKey{logDate, planSessionID}
	session, ok := r.Sessions[key]
	if !ok {
		return 0, 0, ErrPlanSessionNotFound
	}
	delete(r.Sessions, key)
	return 1, len(session.Exercises), nil
}

func (r *repoMock) FlushWorkout(_ context.Context) (int, int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	deletedSessions := len(r.Sessions)
	deletedExercises := 0
	for _, session := range r.Sessions {
		deletedExercises += len(session.Exercises)
	}
	r.Sessions = map[workoutSessionKey]WorkoutSession{}
	return deletedSessions, deletedExercises, nil
}

func (r *repoMock) UpsertAdherence(_ context.Context, a Adherence) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Adherences[a.LogDate] = a
	return nil
}

func (r *repoMock) DeleteAdherence(_ context.Context, logDate string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.Adherences, logDate)
	return nil
}

func (r *repoMock) GetAdherence(_ context.Context, logDate string) (*Adherence, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	a, ok := r.Adherences[logDate]
	if !ok {
		return nil, ErrAdherenceNotFound
	}
	return &a, nil
}

func (r *repoMock) ListAdherenceRange(_ context.Context, from, to string) ([]Adherence, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	adherences := make([]Adherence, 0)
	for date, a := range r.Adherences {
		if date >= from && date <= to {
			adherences = append(adherences, a)
		}
	}
	sort.Slice(adherences, func(i, j int) bool {
		return adherences[i].LogDate < adherences[j].LogDate
	})
	return adherences, nil
}
