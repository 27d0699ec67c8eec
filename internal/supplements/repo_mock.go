package supplements

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	_ catalogRepo = (*repoMock)(nil)
	_ historyRepo = (*repoMock)(nil)
)

type repoMock struct {
	Catalog map[int]Supplement
	Logs    map[string]map[int]LogEntry
	nextID  int
	mutex   sync.Mutex
}

func NewRepoMock(seed ...Supplement) *repoMock {
	repo := &repoMock{
		Catalog: map[int]Supplement{},
		Logs:    map[string]map[int]LogEntry{},
		nextID:  1,
	}
	for _, s := range seed {
		if s.SupplementID == 0 {
			s.SupplementID = repo.nextID
		}
		if s.SupplementID >= repo.nextID {
			repo.nextID = s.SupplementID + 1
		}
		if s.ActiveYN == "" {
			s.ActiveYN = "Y"
		}
		repo.Catalog[s.SupplementID] = s
	}
	return repo
}

func (r *repoMock) findByNameLocked(name string, excludeID int) *Supplement {
	for id, s := range r.Catalog {
		if id != excludeID && strings.EqualFold(s.Name, name) {
			found := s
			return &found
		}
	}
	return nil
}

func (r *repoMock) CreateSupplement(_ context.Context, s Supplement) (*Supplement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.findByNameLocked(s.Name, 0) != nil {
		return nil, ErrNameConflict
	}
	s.SupplementID = r.nextID
	r.nextID++
	now := time.Now().Format(time.RFC3339)
	s.CreatedAt = now
	s.UpdatedAt = now
	r.Catalog[s.SupplementID] = s
	return &s, nil
}

func (r *repoMock) UpdateSupplement(_ context.Context, s Supplement) (*Supplement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	current, ok := r.Catalog[s.SupplementID]
	if !ok {
		return nil, ErrSupplementNotFound
	}
	if r.findByNameLocked(s.Name, s.SupplementID) != nil {
		return nil, ErrNameConflict
	}
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = time.Now().Format(time.RFC3339)
	r.Catalog[s.SupplementID] = s
	return &s, nil
}

func (r *repoMock) FindByName(_ context.Context, name string, excludeID int) (*Supplement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.findByNameLocked(name, excludeID), nil
}

func (r *repoMock) DeleteSupplement(_ context.Context, supplementID int) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s, ok := r.Catalog[supplementID]
	if !ok {
		return "", ErrSupplementNotFound
	}
	delete(r.Catalog, supplementID)
	for _, logs := range r.Logs {
		delete(logs, supplementID)
	}
	return s.Name, nil
}

func (r *repoMock) sortedCatalogLocked(includeInactive bool) []Supplement {
	catalog := make([]Supplement, 0, len(r.Catalog))
	for _, s := range r.Catalog {
		if !includeInactive && s.ActiveYN != "Y" {
			continue
		}
		catalog = append(catalog, s)
	}
	sort.Slice(catalog, func(i, j int) bool {
		if catalog[i].ActiveYN != catalog[j].ActiveYN {
			return catalog[i].ActiveYN > catalog[j].ActiveYN
		}
		ni, nj := strings.ToLower(catalog[i].Name), strings.ToLower(catalog[j].Name)
		if ni != nj {
			return ni < nj
		}
		return catalog[i].SupplementID < catalog[j].SupplementID
	})
	return catalog
}

func (r *repoMock) ListCatalog(_ context.Context, includeInactive bool) ([]Supplement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.sortedCatalogLocked(includeInactive), nil
}

func (r *repoMock) Day(_ context.Context, logDate string) (*Day, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	logs := r.Logs[logDate]
	day := &Day{LogDate: logDate, HasLogs: len(logs) > 0, Entries: []DayEntry{}}
	for _, s := range r.sortedCatalogLocked(true) {
		logEntry, logged := logs[s.SupplementID]
		if s.ActiveYN != "Y" && !logged {
			continue
		}
		entry := DayEntry{
			SupplementID: s.SupplementID,
			Name:         s.Name,
			DosesPerDay:  s.DosesPerDay,
			ActiveYN:     s.ActiveYN,
			DosesTaken:   logEntry.DosesTaken,
			Notes:        logEntry.Notes,
		}
		day.Totals.TargetDoses += entry.DosesPerDay
		day.Totals.TakenDoses += entry.DosesTaken
		day.Entries = append(day.Entries, entry)
	}
	if day.Totals.TargetDoses > 0 {
		pct := float64(day.Totals.TakenDoses) / float64(day.Totals.TargetDoses) * 100.0
		day.Totals.AdherencePct = &pct
	}
	return day, nil
}

func (r *repoMock) ReplaceDay(_ context.Context, logDate string, entries []LogEntry) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, entry := range entries {
		if _, ok := r.Catalog[entry.SupplementID]; !ok {
			return &UnknownSupplementError{SupplementID: entry.SupplementID}
		}
	}
	logs := map[int]LogEntry{}
	for _, entry := range entries {
		logs[entry.SupplementID] = entry
	}
	r.Logs[logDate] = logs
	return nil
}

func (r *repoMock) DeleteDay(_ context.Context, logDate string) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	deleted := len(r.Logs[logDate])
	if deleted == 0 {
		return 0, ErrDayLogNotFound
	}
	delete(r.Logs, logDate)
	return deleted, nil
}

func (r *repoMock) ListLogRange(_ context.Context, from, to string) ([]logRow, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var rows []logRow
	for date, logs := range r.Logs {
		if date < from || date > to {
			continue
		}
		for id, entry := range logs {
			s := r.Catalog[id]
			rows = append(rows, logRow{
				LogDate:     date,
				Name:        s.Name,
				DosesPerDay: s.DosesPerDay,
				DosesTaken:  entry.DosesTaken,
				Notes:       entry.Notes,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LogDate != rows[j].LogDate {
			return rows[i].LogDate > rows[j].LogDate
		}
		return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
	})
	return rows, nil
}

func (r *repoMock) MaxLogDate(_ context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	maxDate := ""
	for date, logs := range r.Logs {
		if len(logs) > 0 && date > maxDate {
			maxDate = date
		}
	}
	return maxDate, nil
}
