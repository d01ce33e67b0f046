// Package testutil provides in-memory fakes of the repositories and
// collaborators the services depend on.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/earnbuddy/backend/internal/entity"
	opportunityRepo "github.com/earnbuddy/backend/internal/modules/opportunity/repository"
	roomRepo "github.com/earnbuddy/backend/internal/modules/room/repository"
	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/google/uuid"
)

// Users is an in-memory UserRepository.
type Users struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*entity.User
}

func NewUsers(users ...*entity.User) *Users {
	u := &Users{byID: make(map[uuid.UUID]*entity.User)}
	for _, user := range users {
		_ = u.Create(context.Background(), user)
	}
	return u
}

func (u *Users) Create(_ context.Context, user *entity.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	for _, existing := range u.byID {
		if existing.FirebaseUID == user.FirebaseUID {
			return apperror.ErrConflict
		}
		if existing.Email != nil && user.Email != nil && *existing.Email == *user.Email {
			return apperror.ErrConflict
		}
	}
	u.byID[user.ID] = user
	return nil
}

func (u *Users) Update(_ context.Context, user *entity.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.byID[user.ID] = user
	return nil
}

func (u *Users) UpdateBookmarks(_ context.Context, userID uuid.UUID, bookmarks []uuid.UUID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[userID]
	if !ok {
		return apperror.ErrNotFound
	}
	user.Bookmarks = bookmarks
	return nil
}

func (u *Users) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return user, nil
}

func (u *Users) FindByFirebaseUID(_ context.Context, uid string) (*entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if user.FirebaseUID == uid {
			return user, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (u *Users) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := u.byID[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

// Rooms is an in-memory RoomRepository.
type Rooms struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*entity.Room
	users       *Users
	memberships *Memberships
	messages    *Messages
}

func NewRooms(rooms ...*entity.Room) *Rooms {
	r := &Rooms{byID: make(map[uuid.UUID]*entity.Room)}
	for _, room := range rooms {
		_ = r.Create(context.Background(), room)
	}
	return r
}

// PreloadCreators fills Room.Creator from users on lookups.
func (r *Rooms) PreloadCreators(users *Users) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = users
}

// CascadeTo makes Delete remove the room's memberships and messages.
func (r *Rooms) CascadeTo(memberships *Memberships, messages *Messages) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberships = memberships
	r.messages = messages
}

func (r *Rooms) withCreator(room *entity.Room) *entity.Room {
	if r.users != nil && room.Creator == nil {
		if creator, err := r.users.FindByID(context.Background(), room.CreatedBy); err == nil {
			room.Creator = creator
		}
	}
	return room
}

func (r *Rooms) Create(_ context.Context, room *entity.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Slug == room.Slug {
			return apperror.ErrConflict
		}
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	r.byID[room.ID] = room
	return nil
}

func (r *Rooms) FindByID(_ context.Context, id uuid.UUID) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return r.withCreator(room), nil
}

func (r *Rooms) FindBySlug(_ context.Context, slug string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.byID {
		if room.Slug == slug {
			return room, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *Rooms) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Room, 0, len(ids))
	for _, id := range ids {
		if room, ok := r.byID[id]; ok {
			out = append(out, r.withCreator(room))
		}
	}
	return out, nil
}

func (r *Rooms) ListPublic(_ context.Context, filter roomRepo.RoomFilter) ([]*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Room
	for _, room := range r.byID {
		if room.IsPrivate {
			continue
		}
		if filter.Type != "" && room.Type != filter.Type {
			continue
		}
		if filter.Type == "" && room.Type == entity.RoomTypeOpportunity {
			continue
		}
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Rooms) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[id]
	if !ok {
		return apperror.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			room.Name = v.(string)
		case "description":
			room.Description = v.(string)
		case "slug":
			room.Slug = v.(string)
		case "avatar":
			room.Avatar = v.(string)
		case "is_private":
			room.IsPrivate = v.(bool)
		}
	}
	return nil
}

func (r *Rooms) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	delete(r.byID, id)
	memberships, messages := r.memberships, r.messages
	r.mu.Unlock()

	if memberships != nil {
		memberships.deleteRoom(id)
	}
	if messages != nil {
		messages.deleteRoom(id)
	}
	return nil
}

func (r *Rooms) IncrementMembers(_ context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.byID[id]
	if !ok {
		return apperror.ErrNotFound
	}
	room.MembersCount += delta
	return nil
}

// Count returns the number of stored rooms.
func (r *Rooms) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Memberships is an in-memory MembershipRepository.
type Memberships struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*entity.RoomMembership
	users *Users
}

func NewMemberships() *Memberships {
	return &Memberships{byID: make(map[uuid.UUID]*entity.RoomMembership)}
}

// ResolveUIDs makes MemberUIDs report firebase uids from users.
func (m *Memberships) ResolveUIDs(users *Users) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users
}

func (m *Memberships) deleteRoom(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.byID {
		if existing.RoomID == roomID {
			delete(m.byID, id)
		}
	}
}

func (m *Memberships) CreateIfAbsent(_ context.Context, membership *entity.RoomMembership) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.RoomID == membership.RoomID && existing.UserID == membership.UserID {
			return false, nil
		}
	}
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}
	m.byID[membership.ID] = membership
	return true, nil
}

func (m *Memberships) Find(_ context.Context, roomID, userID uuid.UUID) (*entity.RoomMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.RoomID == roomID && existing.UserID == userID {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (m *Memberships) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[id]
	if !ok {
		return apperror.ErrNotFound
	}
	existing.Status = status
	return nil
}

func (m *Memberships) Promote(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[id]
	if !ok || existing.Status == entity.MembershipAccepted {
		return false, nil
	}
	existing.Status = entity.MembershipAccepted
	return true, nil
}

func (m *Memberships) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *Memberships) ListByRoom(_ context.Context, roomID uuid.UUID, status string) ([]*entity.RoomMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RoomMembership
	for _, existing := range m.byID {
		if existing.RoomID == roomID && (status == "" || existing.Status == status) {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (m *Memberships) ListByUser(_ context.Context, userID uuid.UUID) ([]*entity.RoomMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RoomMembership
	for _, existing := range m.byID {
		if existing.UserID == userID {
			out = append(out, existing)
		}
	}
	return out, nil
}

// MemberUIDs reports firebase uids when ResolveUIDs was called, user ids
// otherwise.
func (m *Memberships) MemberUIDs(_ context.Context, roomIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}
	out := make(map[uuid.UUID][]string)
	for _, existing := range m.byID {
		if !wanted[existing.RoomID] || existing.Status != entity.MembershipAccepted {
			continue
		}
		uid := existing.UserID.String()
		if m.users != nil {
			if user, err := m.users.FindByID(context.Background(), existing.UserID); err == nil {
				uid = user.FirebaseUID
			}
		}
		out[existing.RoomID] = append(out[existing.RoomID], uid)
	}
	return out, nil
}

// CountFor returns the memberships of roomID.
func (m *Memberships) CountFor(roomID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, existing := range m.byID {
		if existing.RoomID == roomID {
			n++
		}
	}
	return n
}

// Messages is an in-memory MessageRepository.
type Messages struct {
	mu   sync.Mutex
	list []*entity.Message
}

func NewMessages() *Messages {
	return &Messages{}
}

func (m *Messages) deleteRoom(roomID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.list[:0]
	for _, msg := range m.list {
		if msg.RoomID != roomID {
			kept = append(kept, msg)
		}
	}
	m.list = kept
}

func (m *Messages) Create(_ context.Context, message *entity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.list = append(m.list, message)
	return nil
}

func (m *Messages) ListByRoom(_ context.Context, roomID uuid.UUID, before *time.Time, limit int) ([]*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Message
	for i := len(m.list) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.list[i]
		if msg.RoomID != roomID {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// All returns every stored message in insertion order.
func (m *Messages) All() []*entity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Message(nil), m.list...)
}

// Opportunities is an in-memory OpportunityRepository.
type Opportunities struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*entity.Opportunity
}

func NewOpportunities(opportunities ...*entity.Opportunity) *Opportunities {
	o := &Opportunities{byID: make(map[uuid.UUID]*entity.Opportunity)}
	for _, opp := range opportunities {
		_ = o.Create(context.Background(), opp)
	}
	return o
}

func (o *Opportunities) Create(_ context.Context, opportunity *entity.Opportunity) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if opportunity.ID == uuid.Nil {
		opportunity.ID = uuid.New()
	}
	if opportunity.CreatedAt.IsZero() {
		opportunity.CreatedAt = time.Now()
	}
	o.byID[opportunity.ID] = opportunity
	return nil
}

func (o *Opportunities) FindByID(_ context.Context, id uuid.UUID) (*entity.Opportunity, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	opp, ok := o.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return opp, nil
}

func (o *Opportunities) List(_ context.Context, filter opportunityRepo.OpportunityFilter) ([]*entity.Opportunity, int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var all []*entity.Opportunity
	for _, opp := range o.byID {
		if filter.Kind == "" || opp.Kind == filter.Kind {
			all = append(all, opp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (o *Opportunities) AddApplicant(_ context.Context, id, applicantID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	opp, ok := o.byID[id]
	if !ok {
		return apperror.ErrNotFound
	}
	opp.Applicants = append(opp.Applicants, applicantID)
	if opp.TotalApplicants != nil {
		*opp.TotalApplicants = len(opp.Applicants)
	}
	return nil
}

// Applications is an in-memory ApplicationRepository.
type Applications struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*entity.Application
}

func NewApplications() *Applications {
	return &Applications{byID: make(map[uuid.UUID]*entity.Application)}
}

func (a *Applications) CreateIfAbsent(_ context.Context, app *entity.Application) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.byID {
		if existing.OpportunityID == app.OpportunityID && existing.ApplicantID == app.ApplicantID {
			return false, nil
		}
	}
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	a.byID[app.ID] = app
	return true, nil
}

func (a *Applications) FindByID(_ context.Context, id uuid.UUID) (*entity.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (a *Applications) Exists(_ context.Context, opportunityID, applicantID uuid.UUID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.byID {
		if existing.OpportunityID == opportunityID && existing.ApplicantID == applicantID {
			return true, nil
		}
	}
	return false, nil
}

func (a *Applications) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	app, ok := a.byID[id]
	if !ok {
		return apperror.ErrNotFound
	}
	app.Status = status
	return nil
}

func (a *Applications) ListByApplicant(_ context.Context, applicantID uuid.UUID) ([]*entity.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*entity.Application
	for _, app := range a.byID {
		if app.ApplicantID == applicantID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (a *Applications) ListByOpportunity(_ context.Context, opportunityID uuid.UUID) ([]*entity.Application, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*entity.Application
	for _, app := range a.byID {
		if app.OpportunityID == opportunityID {
			out = append(out, app)
		}
	}
	return out, nil
}

// Collaborations is an in-memory CollaborationRepository. FindByID fills
// FromCircle and ToCircle from rooms when it is set.
type Collaborations struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*entity.CollaborationRequest
	rooms *Rooms
}

func NewCollaborations(rooms *Rooms) *Collaborations {
	return &Collaborations{byID: make(map[uuid.UUID]*entity.CollaborationRequest), rooms: rooms}
}

func (c *Collaborations) Create(_ context.Context, req *entity.CollaborationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	c.byID[req.ID] = req
	return nil
}

func (c *Collaborations) FindByID(_ context.Context, id uuid.UUID) (*entity.CollaborationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *req
	if c.rooms != nil {
		cp.FromCircle, _ = c.rooms.FindByID(context.Background(), cp.FromCircleID)
		cp.ToCircle, _ = c.rooms.FindByID(context.Background(), cp.ToCircleID)
	}
	return &cp, nil
}

func (c *Collaborations) HasPending(_ context.Context, fromCircleID, toCircleID uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, req := range c.byID {
		if req.FromCircleID == fromCircleID && req.ToCircleID == toCircleID && req.Status == entity.CollabPending {
			return true, nil
		}
	}
	return false, nil
}

func (c *Collaborations) ListPendingForOwner(_ context.Context, ownerID uuid.UUID) ([]*entity.CollaborationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*entity.CollaborationRequest
	for _, req := range c.byID {
		if req.ToOwnerID == ownerID && req.Status == entity.CollabPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (c *Collaborations) Resolve(_ context.Context, id uuid.UUID, status string, resultRoomID *uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.byID[id]
	if !ok || req.Status != entity.CollabPending {
		return false, nil
	}
	req.Status = status
	req.ResultRoomID = resultRoomID
	return true, nil
}

// Emission is one event recorded by Bus.
type Emission struct {
	Scope   string // global, room, user or revoke
	Target  string
	Event   string
	Payload any
}

// Bus records every emission.
type Bus struct {
	mu     sync.Mutex
	events []Emission
}

func (b *Bus) record(e Emission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *Bus) EmitGlobal(_ context.Context, event string, payload any) {
	b.record(Emission{Scope: "global", Event: event, Payload: payload})
}

func (b *Bus) EmitToRoom(_ context.Context, roomID string, event string, payload any) {
	b.record(Emission{Scope: "room", Target: roomID, Event: event, Payload: payload})
}

func (b *Bus) EmitToUser(_ context.Context, uid string, event string, payload any) {
	b.record(Emission{Scope: "user", Target: uid, Event: event, Payload: payload})
}

// RevokeRoom records the revocation with the uid as Target and the room id
// as Payload.
func (b *Bus) RevokeRoom(_ context.Context, roomID string, uid string) {
	b.record(Emission{Scope: "revoke", Target: uid, Payload: roomID})
}

// Revocations returns the recorded room revocations.
func (b *Bus) Revocations() []Emission {
	var out []Emission
	for _, e := range b.Emissions() {
		if e.Scope == "revoke" {
			out = append(out, e)
		}
	}
	return out
}

// Events returns the names of recorded events in order.
func (b *Bus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Event
	}
	return out
}

// Emissions returns a copy of every recorded emission.
func (b *Bus) Emissions() []Emission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Emission(nil), b.events...)
}

// Count returns how many times event was emitted.
func (b *Bus) Count(event string) int {
	n := 0
	for _, e := range b.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// Notifier records notifications instead of delivering them.
type Notifier struct {
	mu   sync.Mutex
	sent []*entity.Notification
}

func (n *Notifier) Notify(_ context.Context, notification *entity.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

// Sent returns the recorded notifications.
func (n *Notifier) Sent() []*entity.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*entity.Notification(nil), n.sent...)
}

// NewUser returns a user with a fresh id.
func NewUser(uid, name string) *entity.User {
	email := uid + "@example.com"
	return &entity.User{
		ID:          uuid.New(),
		FirebaseUID: uid,
		Email:       &email,
		DisplayName: name,
		Role:        entity.UserRoleStudent,
	}
}
