// Package memstore holds in-memory implementations of the service
// collaborators for tests. They mirror the repositories' error contracts.
package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"projecthub/internal/events"
	"projecthub/internal/models"
	"projecthub/internal/repository"
)

// ErrInjected is returned by stores whose Fail field is set.
var ErrInjected = errors.New("memstore: injected failure")

type Users struct {
	mu   sync.Mutex
	byID map[string]models.User
	Fail bool
}

func NewUsers() *Users {
	return &Users{byID: map[string]models.User{}}
}

func (s *Users) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	for _, u := range s.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	s.byID[user.ID] = user
	return nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return models.User{}, ErrInjected
	}
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *Users) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return models.User{}, ErrInjected
	}
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *Users) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	s.byID[id] = u
	return nil
}

// Put stores a user directly, bypassing the unique email check.
func (s *Users) Put(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[user.ID] = user
}

type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	Fail    bool
}

func NewRevocations() *Revocations {
	return &Revocations{revoked: map[string]time.Time{}}
}

func (s *Revocations) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	if _, ok := s.revoked[jti]; !ok {
		s.revoked[jti] = time.Now()
	}
	return nil
}

func (s *Revocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return false, ErrInjected
	}
	_, ok := s.revoked[jti]
	return ok, nil
}

type Tickets struct {
	mu      sync.Mutex
	tickets []models.ResetTicket
	Fail    bool
}

func NewTickets() *Tickets {
	return &Tickets{}
}

func (s *Tickets) Create(_ context.Context, ticket models.ResetTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	s.tickets = append(s.tickets, ticket)
	return nil
}

func (s *Tickets) find(tokenHash []byte, now time.Time) int {
	for i, t := range s.tickets {
		if bytes.Equal(t.TokenHash, tokenHash) && !t.Used && t.ExpiresAt.After(now) {
			return i
		}
	}
	return -1
}

func (s *Tickets) FindActive(_ context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(tokenHash, now)
	if i < 0 {
		return models.ResetTicket{}, repository.ErrTicketNotFound
	}
	return s.tickets[i], nil
}

func (s *Tickets) Consume(_ context.Context, tokenHash []byte, now time.Time) (models.ResetTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(tokenHash, now)
	if i < 0 {
		return models.ResetTicket{}, repository.ErrTicketNotFound
	}
	s.tickets[i].Used = true
	return s.tickets[i], nil
}

func (s *Tickets) All() []models.ResetTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ResetTicket(nil), s.tickets...)
}

// Projects also needs the user store to join owner fields in ListAll.
type Projects struct {
	mu       sync.Mutex
	projects map[string]models.Project
	users    *Users
	Fail     bool
}

func NewProjects(users *Users) *Projects {
	return &Projects{projects: map[string]models.Project{}, users: users}
}

func (s *Projects) Create(_ context.Context, project models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	s.projects[project.ID] = project
	return nil
}

func (s *Projects) GetByID(_ context.Context, id string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, repository.ErrProjectNotFound
	}
	return p, nil
}

func (s *Projects) sorted() []models.Project {
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Projects) ListByOwner(_ context.Context, userID string) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.sorted() {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Projects) ListAll(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, error) {
	s.mu.Lock()
	all := s.sorted()
	s.mu.Unlock()

	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]models.ProjectWithOwner, 0, len(all))
	for _, p := range all {
		row := models.ProjectWithOwner{Project: p}
		if s.users != nil {
			if owner, err := s.users.GetByID(ctx, p.UserID); err == nil {
				row.OwnerName = owner.Name
				row.OwnerEmail = owner.Email
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Projects) UpdateStatus(_ context.Context, id string, status models.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return repository.ErrProjectNotFound
	}
	p.Status = status
	s.projects[id] = p
	return nil
}

func (s *Projects) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return repository.ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

type Contracts struct {
	mu        sync.Mutex
	contracts []models.Contract
	Fail      bool
}

func NewContracts() *Contracts {
	return &Contracts{}
}

func (s *Contracts) Create(_ context.Context, contract models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	s.contracts = append(s.contracts, contract)
	return nil
}

func (s *Contracts) CountByProject(_ context.Context, projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.contracts {
		if c.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *Contracts) ListByProjects(_ context.Context, projectIDs []string) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := toSet(projectIDs)
	var out []models.Contract
	for _, c := range s.contracts {
		if want[c.ProjectID] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type Messages struct {
	mu       sync.Mutex
	messages []models.Message
	// FailAfter makes Create fail once this many messages are stored; zero
	// disables it.
	FailAfter int
}

func NewMessages() *Messages {
	return &Messages{}
}

func (s *Messages) Create(_ context.Context, message models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter > 0 && len(s.messages) >= s.FailAfter {
		return ErrInjected
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *Messages) ListByProjects(_ context.Context, projectIDs []string, kind models.MessageType) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := toSet(projectIDs)
	var out []models.Message
	for _, m := range s.messages {
		if want[m.ProjectID] && (kind == "" || m.Type == kind) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

type Object struct {
	Data        []byte
	ContentType string
}

// Objects is an in-memory ObjectStorage for a single bucket.
type Objects struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]Object
	// FailOn makes Put fail for keys containing this substring.
	FailOn string
}

func NewObjects(bucket string) *Objects {
	return &Objects{bucket: bucket, objects: map[string]Object{}}
}

func (s *Objects) Bucket() string { return s.bucket }

func (s *Objects) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.FailOn != "" && bytes.Contains([]byte(key), []byte(s.FailOn)) {
		return "", ErrInjected
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("memstore: size mismatch %d != %d", len(data), size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	return "http://objects.test/" + s.bucket + "/" + key, nil
}

func (s *Objects) Remove(_ context.Context, bucket string, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket != s.bucket {
		return fmt.Errorf("memstore: unknown bucket %s", bucket)
	}
	delete(s.objects, key)
	return nil
}

func (s *Objects) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	return o, ok
}

func (s *Objects) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	events []events.Event
	Fail   bool
}

func NewEvents() *Events {
	return &Events{}
}

func (s *Events) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	s.events = append(s.events, event)
	return nil
}

func (s *Events) All() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}
