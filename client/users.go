package client

import (
	"context"
	"net/http"
	"net/url"

	v1 "botadmin/pkg/api/v1"
)

const usersPath = "users/"

type UsersService struct {
	c *Client
}

func (c *Client) Users() *UsersService {
	return &UsersService{c: c}
}

func (s *UsersService) List(ctx context.Context) ([]v1.User, error) {
	return getList[v1.User](ctx, s.c, usersPath, nil)
}

func (s *UsersService) Get(ctx context.Context, id int64) (*v1.User, error) {
	var u v1.User
	if err := s.c.Get(ctx, itemPath(usersPath, id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UsersService) Update(ctx context.Context, id int64, u v1.User) (*v1.User, error) {
	var out v1.User
	if err := s.c.Put(ctx, itemPath(usersPath, id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UsersService) PartialUpdate(ctx context.Context, id int64, fields map[string]any) (*v1.User, error) {
	var out v1.User
	if err := s.c.Patch(ctx, itemPath(usersPath, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UsersService) Delete(ctx context.Context, id int64) error {
	return s.c.Delete(ctx, itemPath(usersPath, id))
}

// ExportCSV returns the raw CSV export of all bot users.
func (s *UsersService) ExportCSV(ctx context.Context) ([]byte, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   usersPath + "csv/",
		Header: http.Header{"Accept": []string{"text/csv, */*"}},
	}
	resp, err := s.c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// CleanRegistrations resets the registration progress of every user.
func (s *UsersService) CleanRegistrations(ctx context.Context) (*v1.CleanupResult, error) {
	var out v1.CleanupResult
	if err := s.c.Post(ctx, usersPath+"clean-registrations/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CleanPayments resets the paid flag of every user.
func (s *UsersService) CleanPayments(ctx context.Context) (*v1.CleanupResult, error) {
	var out v1.CleanupResult
	if err := s.c.Post(ctx, usersPath+"clean-payments/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminsService manages superuser accounts through the users collection.
type AdminsService struct {
	c *Client
}

func (c *Client) Admins() *AdminsService {
	return &AdminsService{c: c}
}

func (s *AdminsService) List(ctx context.Context) ([]v1.User, error) {
	return getList[v1.User](ctx, s.c, usersPath, url.Values{"only_admins": []string{"true"}})
}

func (s *AdminsService) Get(ctx context.Context, id int64) (*v1.User, error) {
	return s.c.Users().Get(ctx, id)
}

// Create always creates a superuser.
func (s *AdminsService) Create(ctx context.Context, u v1.User) (*v1.User, error) {
	u.IsSuperuser = true
	var out v1.User
	if err := s.c.Post(ctx, usersPath, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminsService) Update(ctx context.Context, id int64, u v1.User) (*v1.User, error) {
	return s.c.Users().Update(ctx, id, u)
}

func (s *AdminsService) PartialUpdate(ctx context.Context, id int64, fields map[string]any) (*v1.User, error) {
	return s.c.Users().PartialUpdate(ctx, id, fields)
}

func (s *AdminsService) Delete(ctx context.Context, id int64) error {
	return s.c.Users().Delete(ctx, id)
}
