package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

var adminActor = Actor{UserID: "actor", Role: models.RoleAdmin}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, nil, nil, zap.NewNop())
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	audit := &auditStub{}
	svc := NewUserService(repo, audit, nil, zap.NewNop())
	user, err := svc.Create(context.Background(), CreateUserRequest{Email: "USER@EXAMPLE.COM", FullName: "User", Password: "secret12", Role: models.RoleStaff, Active: true}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.NotEqual(t, "secret12", user.PasswordHash)
	assert.Equal(t, []string{models.AuditActionCreate}, audit.actions())

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "user@example.com", FullName: "Dup", Password: "secret12", Role: models.RoleStaff}, adminActor)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, nil, nil, nil)
	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "a@example.com", FullName: "A", Password: "secret12", Role: "LECTURER"}, adminActor)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "role")
}

func TestUserServiceSuperadminGuard(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"root": {ID: "root", Email: "root@example.com", Role: models.RoleSuperAdmin, Active: true}}}
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "b@example.com", FullName: "B", Password: "secret12", Role: models.RoleSuperAdmin}, adminActor)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "root", UpdateUserRequest{FullName: "Root", Role: models.RoleAdmin}, adminActor)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "root", UpdateUserRequest{FullName: "Root", Role: models.RoleSuperAdmin}, Actor{UserID: "other", Role: models.RoleSuperAdmin})
	assert.NoError(t, err)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleFaculty, Active: true}}}
	audit := &auditStub{}
	svc := NewUserService(repo, audit, nil, zap.NewNop())
	active := false
	user, err := svc.Update(context.Background(), "1", UpdateUserRequest{FullName: "New", Role: models.RoleStaff, Active: &active}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.False(t, user.Active)
	require.Len(t, audit.logs, 1)
	assert.JSONEq(t, `{"role":"FACULTY","active":true}`, string(audit.logs[0].OldValues))
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleFaculty, Active: true}}}
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "1", Actor{UserID: "1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "1", adminActor))
	assert.False(t, repo.users["1"].Active)

	err = svc.Delete(context.Background(), "missing", adminActor)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
