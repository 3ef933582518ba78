package main

import (
	"context"
	"errors"
	"testing"

	"workbench-api/internal/security"
	userdomain "workbench-api/internal/user/domain"
	userrepo "workbench-api/internal/user/repository"
)

type memUsers struct {
	byEmail   map[string]*userdomain.User
	createErr error
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return m.byEmail[email], nil
}

func (m *memUsers) Create(ctx context.Context, u *userdomain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byEmail[u.Email] = u
	return nil
}

func TestSeedDevUser_Idempotent(t *testing.T) {
	users := &memUsers{byEmail: map[string]*userdomain.User{}}
	hasher := security.NewHasher(4)

	created, err := seedDevUser(context.Background(), users, hasher)
	if err != nil || !created {
		t.Fatalf("first seed: created=%v err=%v", created, err)
	}
	u := users.byEmail[devUserEmail]
	if ok, _ := hasher.Verify([]byte(devPassword), u.PasswordHash); !ok {
		t.Error("dev user password hash should verify")
	}

	created, err = seedDevUser(context.Background(), users, hasher)
	if err != nil || created {
		t.Fatalf("second seed: created=%v err=%v, want no-op", created, err)
	}
}

func TestSeedDevUser_RaceIsNoop(t *testing.T) {
	users := &memUsers{byEmail: map[string]*userdomain.User{}, createErr: userrepo.ErrEmailTaken}

	created, err := seedDevUser(context.Background(), users, security.NewHasher(4))
	if err != nil || created {
		t.Errorf("created=%v err=%v, want silent no-op", created, err)
	}
}

func TestSeedDevUser_StoreError(t *testing.T) {
	users := &memUsers{byEmail: map[string]*userdomain.User{}, createErr: errors.New("connection reset")}

	if _, err := seedDevUser(context.Background(), users, security.NewHasher(4)); err == nil {
		t.Error("seedDevUser should surface store errors")
	}
}
