package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/longregen/alicia/internal/domain/models"
)

type fakeUserRepo struct {
	byName map[string]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) GetByDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	u, ok := f.byName[displayName]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeUserRepo) GetByToken(ctx context.Context, token string) (*models.User, error) {
	for _, u := range f.byName {
		if u.AuthToken == token {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	f.byName[u.DisplayName] = u
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, u *models.User) error {
	f.byName[u.DisplayName] = u
	return nil
}

func newFakeRepoWithUser(name, token string) *fakeUserRepo {
	u := models.NewUser("u_1", name, "hash")
	u.IssueToken(token)
	return &fakeUserRepo{byName: map[string]*models.User{name: u}}
}

func TestValidator_CorrectToken(t *testing.T) {
	repo := newFakeRepoWithUser("xiaoming", "secret-token")
	v := NewValidator(repo)

	userID, err := v.Validate(context.Background(), "xiaoming", "secret-token")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if userID != "u_1" {
		t.Errorf("expected u_1, got %s", userID)
	}
}

func TestValidator_WrongToken(t *testing.T) {
	repo := newFakeRepoWithUser("xiaoming", "secret-token")
	v := NewValidator(repo)

	if _, err := v.Validate(context.Background(), "xiaoming", "wrong"); err == nil {
		t.Fatal("expected error for wrong token")
	}
}

func TestValidator_UnknownUser(t *testing.T) {
	repo := &fakeUserRepo{byName: map[string]*models.User{}}
	v := NewValidator(repo)

	if _, err := v.Validate(context.Background(), "ghost", "anything"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestValidator_EmptyCredentials(t *testing.T) {
	repo := newFakeRepoWithUser("xiaoming", "secret-token")
	v := NewValidator(repo)

	if _, err := v.Validate(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty credentials")
	}
	if _, err := v.Validate(context.Background(), "xiaoming", ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestValidator_NoTokenIssuedYet(t *testing.T) {
	u := models.NewUser("u_2", "newbie", "hash")
	repo := &fakeUserRepo{byName: map[string]*models.User{"newbie": u}}
	v := NewValidator(repo)

	if _, err := v.Validate(context.Background(), "newbie", ""); err == nil {
		t.Fatal("expected error when user has no issued token")
	}
}
