package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"timetable/backend/internal/model"
	pkgerrors "timetable/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, keyword string, offset, limit int) ([]model.User, int64, error) {
	var filtered []model.User
	for _, u := range m.users {
		if keyword == "" || strings.Contains(u.Username, keyword) || strings.Contains(u.Name, keyword) {
			filtered = append(filtered, *u)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].UserID < filtered[j].UserID })
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

// ── Mock TimetableRepository ──

type mockTimetableRepo struct {
	timetables map[string]*model.Timetable
}

func newMockTimetableRepo() *mockTimetableRepo {
	return &mockTimetableRepo{timetables: make(map[string]*model.Timetable)}
}

func (m *mockTimetableRepo) Create(_ context.Context, timetable *model.Timetable) error {
	if timetable.TimetableID == "" {
		timetable.TimetableID = "tt-" + timetable.Name
	}
	if timetable.Version == 0 {
		timetable.Version = 1
	}
	m.timetables[timetable.TimetableID] = timetable
	return nil
}

func (m *mockTimetableRepo) GetByID(_ context.Context, id string) (*model.Timetable, error) {
	if t, ok := m.timetables[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimetableRepo) ListByOrganization(_ context.Context, organizationID string, offset, limit int) ([]model.Timetable, int64, error) {
	var filtered []model.Timetable
	for _, t := range m.timetables {
		if t.OrganizationID == organizationID {
			filtered = append(filtered, *t)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].TimetableID < filtered[j].TimetableID })
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockTimetableRepo) Update(_ context.Context, timetable *model.Timetable) error {
	existing, ok := m.timetables[timetable.TimetableID]
	if !ok || existing.Version != timetable.Version {
		return pkgerrors.ErrOptimisticLock
	}
	timetable.Version++
	m.timetables[timetable.TimetableID] = timetable
	return nil
}

func (m *mockTimetableRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.timetables, id)
	return nil
}

// ── Mock TemplateSlotRepository ──

type mockTemplateSlotRepo struct {
	slots   map[string]*model.TemplateSlot
	counter int
}

func newMockTemplateSlotRepo() *mockTemplateSlotRepo {
	return &mockTemplateSlotRepo{slots: make(map[string]*model.TemplateSlot)}
}

func (m *mockTemplateSlotRepo) Create(_ context.Context, slot *model.TemplateSlot) error {
	if slot.SlotID == "" {
		m.counter++
		slot.SlotID = fmt.Sprintf("slot-%03d", m.counter)
	}
	m.slots[slot.SlotID] = slot
	return nil
}

func (m *mockTemplateSlotRepo) GetByID(_ context.Context, id string) (*model.TemplateSlot, error) {
	if s, ok := m.slots[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTemplateSlotRepo) ListByTimetable(_ context.Context, timetableID string) ([]model.TemplateSlot, error) {
	var result []model.TemplateSlot
	for _, s := range m.slots {
		if s.TimetableID == timetableID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (m *mockTemplateSlotRepo) ExistsTimeKey(_ context.Context, timetableID string, dayOfWeek int, startTime, endTime, excludeSlotID string) (bool, error) {
	for _, s := range m.slots {
		if s.SlotID == excludeSlotID {
			continue
		}
		if s.TimetableID == timetableID && s.DayOfWeek == dayOfWeek &&
			s.StartTime == startTime && s.EndTime == endTime {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTemplateSlotRepo) Update(_ context.Context, slot *model.TemplateSlot) error {
	m.slots[slot.SlotID] = slot
	return nil
}

func (m *mockTemplateSlotRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.slots, id)
	return nil
}

// ── Mock WeeklyInstanceRepository ──

type mockWeeklyInstanceRepo struct {
	instances map[string]*model.WeeklyInstance
	counter   int
}

func newMockWeeklyInstanceRepo() *mockWeeklyInstanceRepo {
	return &mockWeeklyInstanceRepo{instances: make(map[string]*model.WeeklyInstance)}
}

func (m *mockWeeklyInstanceRepo) Create(_ context.Context, instance *model.WeeklyInstance) error {
	if instance.InstanceID == "" {
		m.counter++
		instance.InstanceID = fmt.Sprintf("inst-%03d", m.counter)
	}
	if instance.GeneratedAt.IsZero() {
		instance.GeneratedAt = time.Now()
	}
	m.instances[instance.InstanceID] = instance
	return nil
}

func (m *mockWeeklyInstanceRepo) GetByID(_ context.Context, id string) (*model.WeeklyInstance, error) {
	if i, ok := m.instances[id]; ok {
		return i, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeeklyInstanceRepo) GetByYearWeek(_ context.Context, timetableID, yearWeek string) (*model.WeeklyInstance, error) {
	var candidates []*model.WeeklyInstance
	for _, i := range m.instances {
		if i.TimetableID == timetableID && i.YearWeek == yearWeek {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].GeneratedAt.Equal(candidates[j].GeneratedAt) {
			return candidates[i].GeneratedAt.Before(candidates[j].GeneratedAt)
		}
		return candidates[i].InstanceID < candidates[j].InstanceID
	})
	return candidates[0], nil
}

func (m *mockWeeklyInstanceRepo) ListByTimetable(_ context.Context, timetableID string) ([]model.WeeklyInstance, error) {
	var result []model.WeeklyInstance
	for _, i := range m.instances {
		if i.TimetableID == timetableID {
			result = append(result, *i)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].YearWeek != result[j].YearWeek {
			return result[i].YearWeek < result[j].YearWeek
		}
		return result[i].GeneratedAt.Before(result[j].GeneratedAt)
	})
	return result, nil
}

func (m *mockWeeklyInstanceRepo) ListFromYearWeek(_ context.Context, timetableID, fromYearWeek string) ([]model.WeeklyInstance, error) {
	var result []model.WeeklyInstance
	for _, i := range m.instances {
		if i.TimetableID == timetableID && i.YearWeek >= fromYearWeek {
			result = append(result, *i)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].YearWeek < result[j].YearWeek })
	return result, nil
}

func (m *mockWeeklyInstanceRepo) ClearCurrent(_ context.Context, timetableID string) error {
	for _, i := range m.instances {
		if i.TimetableID == timetableID {
			i.IsCurrent = false
		}
	}
	return nil
}

func (m *mockWeeklyInstanceRepo) SetCurrent(_ context.Context, instanceID string) error {
	if i, ok := m.instances[instanceID]; ok {
		i.IsCurrent = true
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockWeeklyInstanceRepo) UpdateLastSynced(_ context.Context, instanceID string, syncedAt time.Time) error {
	if i, ok := m.instances[instanceID]; ok {
		i.LastSyncedAt = &syncedAt
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockWeeklyInstanceRepo) Delete(_ context.Context, id string) error {
	delete(m.instances, id)
	return nil
}

// ── Mock OccurrenceRepository ──

type mockOccurrenceRepo struct {
	occs    map[string]*model.InstanceOccurrence
	counter int
}

func newMockOccurrenceRepo() *mockOccurrenceRepo {
	return &mockOccurrenceRepo{occs: make(map[string]*model.InstanceOccurrence)}
}

func (m *mockOccurrenceRepo) Create(_ context.Context, occ *model.InstanceOccurrence) error {
	if occ.OccurrenceID == "" {
		m.counter++
		occ.OccurrenceID = fmt.Sprintf("occ-%03d", m.counter)
	}
	clone := *occ
	m.occs[occ.OccurrenceID] = &clone
	return nil
}

func (m *mockOccurrenceRepo) BatchCreate(ctx context.Context, occs []model.InstanceOccurrence) error {
	for i := range occs {
		if err := m.Create(ctx, &occs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockOccurrenceRepo) GetByID(_ context.Context, id string) (*model.InstanceOccurrence, error) {
	if o, ok := m.occs[id]; ok {
		clone := *o
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) ListByInstance(_ context.Context, instanceID string) ([]model.InstanceOccurrence, error) {
	var result []model.InstanceOccurrence
	for _, o := range m.occs {
		if o.WeeklyInstanceID == instanceID {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduleDate.Equal(result[j].ScheduleDate) {
			return result[i].ScheduleDate.Before(result[j].ScheduleDate)
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].OccurrenceID < result[j].OccurrenceID
	})
	return result, nil
}

func (m *mockOccurrenceRepo) Update(_ context.Context, occ *model.InstanceOccurrence) error {
	if _, ok := m.occs[occ.OccurrenceID]; !ok {
		return gorm.ErrRecordNotFound
	}
	clone := *occ
	m.occs[occ.OccurrenceID] = &clone
	return nil
}

func (m *mockOccurrenceRepo) UpdateModifiedFlag(_ context.Context, id string, isModified bool) error {
	if o, ok := m.occs[id]; ok {
		o.IsModified = isModified
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) Delete(_ context.Context, id string) error {
	delete(m.occs, id)
	return nil
}

func (m *mockOccurrenceRepo) BatchDelete(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.occs, id)
	}
	return nil
}

func (m *mockOccurrenceRepo) DeleteNonManualByInstance(_ context.Context, instanceID string) error {
	for id, o := range m.occs {
		if o.WeeklyInstanceID == instanceID && !o.IsManualAdded {
			delete(m.occs, id)
		}
	}
	return nil
}
