package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	accountserrors "meetly/internal/accounts/errors"
	"meetly/internal/conferencing"
	confErrors "meetly/internal/conferencing/errors"
	locationserrors "meetly/internal/locations/errors"
	meetingserrors "meetly/internal/meetings/errors"
	"meetly/internal/meetings/repository"
	"meetly/internal/scheduler"
	userserrors "meetly/internal/users/errors"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/kafka"
	"meetly/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memoryDB backs every store used by the scheduler. Transactions snapshot the
// meetings and sessions and restore them when the callback fails.
type memoryDB struct {
	mu          sync.Mutex
	meetings    map[string]model.Meeting
	sessions    map[string]model.ConferencingSession // keyed by meeting id
	attendances []*model.Attendance
	accounts    []*model.ConferencingAccount
	locations   map[string]*model.MeetingLocation
	users       map[string]*model.User
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		meetings:  make(map[string]model.Meeting),
		sessions:  make(map[string]model.ConferencingSession),
		locations: make(map[string]*model.MeetingLocation),
		users:     make(map[string]*model.User),
	}
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func (db *memoryDB) addAccount(name, hostKey string) *model.ConferencingAccount {
	db.mu.Lock()
	defer db.mu.Unlock()
	account := &model.ConferencingAccount{
		ID:                newID(),
		Name:              name,
		ProviderAccountID: "acct-" + name,
		ClientID:          "client-" + name,
		ClientSecret:      "secret-" + name,
		HostKey:           hostKey,
		CreatedAt:         time.Now().Add(time.Duration(len(db.accounts)) * time.Second),
	}
	db.accounts = append(db.accounts, account)
	return account
}

func (db *memoryDB) addLocation(name string) *model.MeetingLocation {
	db.mu.Lock()
	defer db.mu.Unlock()
	location := &model.MeetingLocation{ID: newID(), Name: name, Address: name + " street"}
	db.locations[location.ID] = location
	return location
}

func (db *memoryDB) addUser(name string) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	user := &model.User{ID: newID(), Name: name, Email: name + "@example.com"}
	db.users[user.ID] = user
	return user
}

func (db *memoryDB) meetingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.meetings)
}

func (db *memoryDB) sessionFor(meetingID string) (model.ConferencingSession, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[meetingID]
	return s, ok
}

func (db *memoryDB) storedMeeting(id string) (model.Meeting, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.meetings[id]
	return m, ok
}

// meetingRepo

type memoryMeetings struct {
	db *memoryDB
	// commitErr fails the commit after the callback succeeded.
	commitErr error
}

var _ repository.MeetingRepository = (*memoryMeetings)(nil)

func (r *memoryMeetings) Create(_ context.Context, meeting *model.Meeting) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	meeting.ID = newID()
	meeting.CreatedAt = time.Now().UTC()
	meeting.UpdatedAt = meeting.CreatedAt
	if meeting.Participants == nil {
		meeting.Participants = []string{}
	}
	stored := *meeting
	stored.Participants = append([]string(nil), meeting.Participants...)
	stored.Location, stored.Session, stored.Organizer, stored.HostKey = nil, nil, nil, ""
	r.db.meetings[meeting.ID] = stored
	return nil
}

func (r *memoryMeetings) find(match func(model.Meeting) bool) (*model.Meeting, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, m := range r.db.meetings {
		if match(m) {
			found := m
			found.Participants = append([]string(nil), m.Participants...)
			return &found, nil
		}
	}
	return nil, meetingserrors.ErrNotFound
}

func (r *memoryMeetings) FindByID(_ context.Context, id string) (*model.Meeting, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}
	return r.find(func(m model.Meeting) bool { return m.ID == id })
}

func (r *memoryMeetings) FindByUUID(_ context.Context, uuid string) (*model.Meeting, error) {
	return r.find(func(m model.Meeting) bool { return m.UUID == uuid })
}

func (r *memoryMeetings) matching(f model.MeetingFilter) []*model.Meeting {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Meeting
	for _, m := range r.db.meetings {
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.OrganizerID != "" && m.OrganizerID != f.OrganizerID {
			continue
		}
		if f.LocationID != "" && m.LocationID != f.LocationID {
			continue
		}
		if f.From != nil && f.To != nil && !scheduler.Overlaps(m.StartTime, m.EndTime, *f.From, *f.To) {
			continue
		}
		found := m
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *memoryMeetings) FindAll(_ context.Context, filter model.MeetingFilter, limit int, offset int64) ([]*model.Meeting, error) {
	all := r.matching(filter)
	if int(offset) >= len(all) {
		return []*model.Meeting{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryMeetings) Count(_ context.Context, filter model.MeetingFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *memoryMeetings) mutate(id string, fn func(*model.Meeting)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.meetings[id]
	if !ok {
		return meetingserrors.ErrNotFound
	}
	fn(&m)
	m.UpdatedAt = time.Now().UTC()
	r.db.meetings[id] = m
	return nil
}

func (r *memoryMeetings) Update(_ context.Context, id string, meeting *model.Meeting) error {
	return r.mutate(id, func(m *model.Meeting) {
		created := m.CreatedAt
		*m = *meeting
		m.ID = id
		m.CreatedAt = created
		m.Participants = append([]string(nil), meeting.Participants...)
		m.Location, m.Session, m.Organizer, m.HostKey = nil, nil, nil, ""
	})
}

func (r *memoryMeetings) SetStatus(_ context.Context, id string, status model.MeetingStatus) error {
	return r.mutate(id, func(m *model.Meeting) { m.Status = status })
}

func (r *memoryMeetings) SetParticipants(_ context.Context, id string, participants []string) error {
	return r.mutate(id, func(m *model.Meeting) { m.Participants = append([]string{}, participants...) })
}

func (r *memoryMeetings) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.meetings[id]; !ok {
		return meetingserrors.ErrNotFound
	}
	delete(r.db.meetings, id)
	return nil
}

func (r *memoryMeetings) CountByLocation(_ context.Context, locationID string) (int64, error) {
	return int64(len(r.matching(model.MeetingFilter{LocationID: locationID}))), nil
}

func (r *memoryMeetings) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.db.mu.Lock()
	meetings := make(map[string]model.Meeting, len(r.db.meetings))
	for k, v := range r.db.meetings {
		meetings[k] = v
	}
	sessions := make(map[string]model.ConferencingSession, len(r.db.sessions))
	for k, v := range r.db.sessions {
		sessions[k] = v
	}
	attendances := append([]*model.Attendance(nil), r.db.attendances...)
	r.db.mu.Unlock()

	err := fn(mongo.NewSessionContext(ctx, nil))
	if err == nil {
		err = r.commitErr
	}
	if err != nil {
		r.db.mu.Lock()
		r.db.meetings = meetings
		r.db.sessions = sessions
		r.db.attendances = attendances
		r.db.mu.Unlock()
	}
	return err
}

func (r *memoryMeetings) LocationBookings(_ context.Context, locationID string, start, end time.Time, exclude string) ([]scheduler.Interval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []scheduler.Interval
	for _, m := range r.db.meetings {
		if m.ID == exclude || m.LocationID != locationID || !m.Type.RequiresLocation() {
			continue
		}
		if scheduler.Overlaps(m.StartTime, m.EndTime, start, end) {
			out = append(out, scheduler.Interval{MeetingID: m.ID, Start: m.StartTime, End: m.EndTime})
		}
	}
	return out, nil
}

func (r *memoryMeetings) AccountBookings(_ context.Context, accountID string, start, end time.Time, exclude string) ([]scheduler.Interval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []scheduler.Interval
	for meetingID, s := range r.db.sessions {
		if s.AccountID != accountID || meetingID == exclude {
			continue
		}
		m, ok := r.db.meetings[meetingID]
		if ok && scheduler.Overlaps(m.StartTime, m.EndTime, start, end) {
			out = append(out, scheduler.Interval{MeetingID: m.ID, Start: m.StartTime, End: m.EndTime})
		}
	}
	return out, nil
}

// sessions

type memorySessions struct{ db *memoryDB }

func (r *memorySessions) Upsert(_ context.Context, session *model.ConferencingSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if session.ID == "" {
		session.ID = newID()
	}
	r.db.sessions[session.MeetingID] = *session
	return nil
}

func (r *memorySessions) FindByMeetingID(_ context.Context, meetingID string) (*model.ConferencingSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sessions[meetingID]
	if !ok {
		return nil, confErrors.ErrNotFound
	}
	return &s, nil
}

func (r *memorySessions) FindByMeetingIDs(_ context.Context, meetingIDs []string) (map[string]*model.ConferencingSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make(map[string]*model.ConferencingSession)
	for _, id := range meetingIDs {
		if s, ok := r.db.sessions[id]; ok {
			out[id] = &s
		}
	}
	return out, nil
}

func (r *memorySessions) FindByProviderID(_ context.Context, providerID string) (*model.ConferencingSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sessions {
		if s.ProviderID == providerID {
			found := s
			return &found, nil
		}
	}
	return nil, confErrors.ErrNotFound
}

func (r *memorySessions) DeleteByMeetingID(_ context.Context, meetingID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sessions[meetingID]; !ok {
		return confErrors.ErrNotFound
	}
	delete(r.db.sessions, meetingID)
	return nil
}

func (r *memorySessions) deleteByProviderID(providerID string) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for meetingID, s := range r.db.sessions {
		if s.ProviderID == providerID {
			delete(r.db.sessions, meetingID)
		}
	}
}

// accounts, locations, users

type memoryAccounts struct{ db *memoryDB }

func (r *memoryAccounts) FindByID(_ context.Context, id string) (*model.ConferencingAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, accountserrors.ErrNotFound
}

func (r *memoryAccounts) ListOrdered(_ context.Context) ([]*model.ConferencingAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return append([]*model.ConferencingAccount(nil), r.db.accounts...), nil
}

type memoryLocations struct{ db *memoryDB }

func (r *memoryLocations) FindByID(_ context.Context, id string) (*model.MeetingLocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if l, ok := r.db.locations[id]; ok {
		return l, nil
	}
	return nil, locationserrors.ErrNotFound
}

func (r *memoryLocations) FindByIDs(_ context.Context, ids []string) (map[string]*model.MeetingLocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make(map[string]*model.MeetingLocation)
	for _, id := range ids {
		if l, ok := r.db.locations[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

type memoryUsers struct{ db *memoryDB }

func (r *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		return u, nil
	}
	return nil, userserrors.ErrNotFound
}

func (r *memoryUsers) FindByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make(map[string]*model.User)
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type memoryAttendances struct{ db *memoryDB }

func (r *memoryAttendances) Create(_ context.Context, attendance *model.Attendance) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.attendances {
		if attendance.Email != "" && a.MeetingID == attendance.MeetingID && a.Email == attendance.Email {
			return meetingserrors.ErrDuplicateAttendance
		}
	}
	attendance.ID = newID()
	attendance.CreatedAt = time.Now().UTC()
	r.db.attendances = append(r.db.attendances, attendance)
	return nil
}

func (r *memoryAttendances) FindByMeeting(_ context.Context, meetingID string, limit int, offset int64) ([]*model.Attendance, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Attendance
	for _, a := range r.db.attendances {
		if a.MeetingID == meetingID {
			out = append(out, a)
		}
	}
	if int(offset) >= len(out) {
		return []*model.Attendance{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryAttendances) CountByMeeting(_ context.Context, meetingID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, a := range r.db.attendances {
		if a.MeetingID == meetingID {
			n++
		}
	}
	return n, nil
}

func (r *memoryAttendances) DeleteByMeeting(_ context.Context, meetingID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.attendances[:0]
	for _, a := range r.db.attendances {
		if a.MeetingID != meetingID {
			kept = append(kept, a)
		}
	}
	r.db.attendances = kept
	return nil
}

// fakeGateway simulates the provider. Remote sessions live in remote and
// survive local rollbacks.
type fakeGateway struct {
	mu       sync.Mutex
	sessions *memorySessions
	remote   map[string]string // provider id -> account id
	nextID   int

	createDelay time.Duration
	createErr   error
	updateErr   error
	deleteErr   error
	status      string
	created     []string
	updated     []string
	deleted     []string
	refreshed   int
}

func newFakeGateway(sessions *memorySessions) *fakeGateway {
	return &fakeGateway{sessions: sessions, remote: make(map[string]string)}
}

func (g *fakeGateway) Timezone() string { return "UTC" }

func (g *fakeGateway) CreateSession(ctx context.Context, account *model.ConferencingAccount, params conferencing.SessionParams, meetingID string) (*model.ConferencingSession, error) {
	if g.createDelay > 0 {
		select {
		case <-time.After(g.createDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	if g.createErr != nil {
		err := g.createErr
		g.mu.Unlock()
		return nil, err
	}
	g.nextID++
	providerID := fmt.Sprintf("%d", 80000+g.nextID)
	g.remote[providerID] = account.ID
	g.created = append(g.created, providerID)
	g.mu.Unlock()

	session := &model.ConferencingSession{
		MeetingID:  meetingID,
		AccountID:  account.ID,
		ProviderID: providerID,
		Status:     model.SessionStatusWaiting,
		Duration:   params.Duration,
		JoinURL:    "https://conf.example.com/j/" + providerID,
		Password:   params.Password,
	}
	if err := g.sessions.Upsert(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (g *fakeGateway) UpdateSession(_ context.Context, _ *model.ConferencingAccount, remoteID string, _ conferencing.SessionParams) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updated = append(g.updated, remoteID)
	return g.updateErr
}

func (g *fakeGateway) DeleteSession(_ context.Context, _ *model.ConferencingAccount, remoteID string) error {
	g.mu.Lock()
	g.deleted = append(g.deleted, remoteID)
	if g.deleteErr != nil {
		err := g.deleteErr
		g.mu.Unlock()
		return err
	}
	delete(g.remote, remoteID)
	g.mu.Unlock()

	g.sessions.deleteByProviderID(remoteID)
	return nil
}

func (g *fakeGateway) RefreshSession(ctx context.Context, _ *model.ConferencingAccount, existing *model.ConferencingSession) (*model.ConferencingSession, error) {
	g.mu.Lock()
	g.refreshed++
	status := g.status
	g.mu.Unlock()

	refreshed := *existing
	if status != "" {
		refreshed.Status = status
	}
	refreshed.RecordingPlayURL = "https://conf.example.com/rec/" + existing.ProviderID
	if err := g.sessions.Upsert(ctx, &refreshed); err != nil {
		return nil, err
	}
	return &refreshed, nil
}

func (g *fakeGateway) remoteCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.remote)
}

type stubLocker struct{ err error }

func (l stubLocker) Acquire(context.Context, string) (scheduler.Lease, error) {
	if l.err != nil {
		return nil, l.err
	}
	return stubLease{}, nil
}

type stubLease struct{}

func (stubLease) Held(context.Context) error    { return nil }
func (stubLease) Release(context.Context) error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg.GetEventType())
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

var errProvider = &confErrors.RemoteError{Operation: "create meeting", StatusCode: 500, Message: "boom"}
