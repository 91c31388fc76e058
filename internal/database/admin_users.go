package database

import (
	"context"

	"github.com/google/uuid"
)

const getAdminByUsername = `
SELECT id, username, hashed_password, full_name, created_at
FROM admin_users WHERE username = $1`

func (q *Queries) GetAdminByUsername(ctx context.Context, username string) (AdminUser, error) {
	var u AdminUser
	err := q.db.QueryRow(ctx, getAdminByUsername, username).Scan(
		&u.ID, &u.Username, &u.HashedPassword, &u.FullName, &u.CreatedAt,
	)
	return u, err
}

const getAdminByID = `
SELECT id, username, hashed_password, full_name, created_at
FROM admin_users WHERE id = $1`

func (q *Queries) GetAdminByID(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	var u AdminUser
	err := q.db.QueryRow(ctx, getAdminByID, id).Scan(
		&u.ID, &u.Username, &u.HashedPassword, &u.FullName, &u.CreatedAt,
	)
	return u, err
}

const createAdminUser = `
INSERT INTO admin_users (username, hashed_password, full_name)
VALUES ($1, $2, $3)
RETURNING id, username, hashed_password, full_name, created_at`

type CreateAdminUserParams struct {
	Username       string
	HashedPassword string
	FullName       string
}

func (q *Queries) CreateAdminUser(ctx context.Context, arg CreateAdminUserParams) (AdminUser, error) {
	var u AdminUser
	err := q.db.QueryRow(ctx, createAdminUser, arg.Username, arg.HashedPassword, arg.FullName).Scan(
		&u.ID, &u.Username, &u.HashedPassword, &u.FullName, &u.CreatedAt,
	)
	return u, err
}
