package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/identity-service/domain/errors"
	"opencast/contexts/identity-access/identity-service/ports"
)

// Store is the in-memory twin of the postgres adapter. The write lock
// stands in for the email unique constraint: duplicate registration checks
// and the insert happen under one critical section.
type Store struct {
	mu sync.RWMutex

	usersByID    map[string]entities.User
	usersByEmail map[string]string
	sequence     uint64
}

func NewStore() *Store {
	return &Store{
		usersByID:    make(map[string]entities.User),
		usersByEmail: make(map[string]string),
	}
}

func (s *Store) CreateUser(_ context.Context, input ports.CreateUserInput) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, exists := s.usersByEmail[email]; exists {
		return entities.User{}, domainerrors.ErrEmailTaken
	}

	now := input.DateJoined.UTC()
	user := entities.User{
		UserID:       strings.TrimSpace(input.UserID),
		Email:        email,
		Username:     strings.TrimSpace(input.Username),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: input.PasswordHash,
		IsActive:     true,
		IsSuperuser:  input.IsSuperuser,
		DateJoined:   now,
		UpdatedAt:    now,
	}
	s.usersByID[user.UserID] = user
	s.usersByEmail[email] = user.UserID
	return user, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[strings.TrimSpace(userID)]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return s.usersByID[userID], nil
}

func (s *Store) ListUsers(_ context.Context) ([]entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.User, 0, len(s.usersByID))
	for _, user := range s.usersByID {
		items = append(items, user)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].DateJoined.Equal(items[j].DateJoined) {
			return items[i].UserID < items[j].UserID
		}
		return items[i].DateJoined.Before(items[j].DateJoined)
	})
	return items, nil
}

func (s *Store) UpdateUser(
	_ context.Context,
	userID string,
	patch ports.UserPatch,
	now time.Time,
) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[strings.TrimSpace(userID)]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	if patch.Username != nil {
		user.Username = strings.TrimSpace(*patch.Username)
	}
	if patch.FirstName != nil {
		user.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		user.LastName = strings.TrimSpace(*patch.LastName)
	}
	user.UpdatedAt = now.UTC()
	s.usersByID[user.UserID] = user
	return user, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID string, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[strings.TrimSpace(userID)]
	if !ok {
		return domainerrors.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = now.UTC()
	s.usersByID[user.UserID] = user
	return nil
}

func (s *Store) DeactivateUser(_ context.Context, userID string, now time.Time) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[strings.TrimSpace(userID)]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	user.IsActive = false
	user.UpdatedAt = now.UTC()
	s.usersByID[user.UserID] = user
	return user, nil
}

// PromoteSuperuser flips the superuser flag, mirroring an operator-run
// promotion. Test and development helper.
func (s *Store) PromoteSuperuser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[strings.TrimSpace(userID)]
	if !ok {
		return
	}
	user.IsSuperuser = true
	s.usersByID[user.UserID] = user
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf("mem_%06d", s.sequence), nil
}
