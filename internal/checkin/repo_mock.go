package checkin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	_ checkinRepo  = (*repoMock)(nil)
	_ importerRepo = (*repoMock)(nil)
)

// same code as a real duplicate-key failure, so the importer's backstop triggers
var errUniqueViolationMock = &pgconn.PgError{Code: "23505"}

type repoMock struct {
	CheckIns map[string]CheckIn
	mutex    sync.Mutex
}

func NewRepoMock(seed ...CheckIn) *repoMock {
	repo := &repoMock{
		CheckIns: map[string]CheckIn{},
	}
	for _, c := range seed {
		repo.CheckIns[c.LogDate] = c
	}
	return repo
}

func (r *repoMock) Upsert(_ context.Context, c CheckIn) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.CheckIns[c.LogDate] = c
	return nil
}

func (r *repoMock) Insert(_ context.Context, c CheckIn) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.CheckIns[c.LogDate]; ok {
		return errUniqueViolationMock
	}
	r.CheckIns[c.LogDate] = c
	return nil
}

func (r *repoMock) Get(_ context.Context, logDate string) (*CheckIn, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	c, ok := r.CheckIns[logDate]
	if !ok {
		return nil, ErrCheckinNotFound
	}
	return &c, nil
}

func (r *repoMock) Exists(_ context.Context, logDate string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.CheckIns[logDate]
	return ok, nil
}

func (r *repoMock) ListRange(_ context.Context, from, to string) ([]CheckIn, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	checkins := make([]CheckIn, 0)
	for date, c := range r.CheckIns {
		if date >= from && date <= to {
			checkins = append(checkins, c)
		}
	}
	sort.Slice(checkins, func(i, j int) bool {
		return checkins[i].LogDate < checkins[j].LogDate
	})
	return checkins, nil
}

func (r *repoMock) ListWindow(ctx context.Context, days int) ([]CheckIn, error) {
	maxDate, _ := r.MaxLogDate(ctx)
	from, to := pkg.CalendarWindow(maxDate, days, time.Now())
	checkins, err := r.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sort.Slice(checkins, func(i, j int) bool {
		return checkins[i].LogDate > checkins[j].LogDate
	})
	return checkins, nil
}

func (r *repoMock) Delete(_ context.Context, logDate string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.CheckIns[logDate]; !ok {
		return ErrCheckinNotFound
	}
	delete(r.CheckIns, logDate)
	return nil
}

func (r *repoMock) ExistingDates(_ context.Context) (map[string]bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	dates := make(map[string]bool, len(r.CheckIns))
	for date := range r.CheckIns {
		dates[date] = true
	}
	return dates, nil
}

func (r *repoMock) MaxLogDate(_ context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	maxDate := ""
	for date := range r.CheckIns {
		if date > maxDate {
			maxDate = date
		}
	}
	return maxDate, nil
}
