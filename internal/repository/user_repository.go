package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/utils"
)

// UserRepo persists users and their linked GitHub identity.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,display_name,github_id,github_login,github_avatar_url,github_access_token,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.GitHubID, &u.GitHubLogin, &u.GitHubAvatarURL, &u.GitHubAccessToken,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// Create inserts a user with a bcrypt-hashed password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, displayName string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, display_name) VALUES (?,?,?,?)",
		id, email, hash, displayName)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// CreateFromGitHub inserts a user discovered through the OAuth flow.  No
// password is set; such users authenticate via GitHub until they set one.
func (r *UserRepo) CreateFromGitHub(ctx context.Context, email, displayName, ghID, ghLogin, ghAvatar, ghToken string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, display_name, github_id, github_login, github_avatar_url, github_access_token) VALUES (?,?,?,?,?,?,?,?)",
		id, email, "", displayName, ghID, ghLogin, ghAvatar, ghToken)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByGitHubID fetches a user by the linked GitHub account id.
func (r *UserRepo) GetByGitHubID(ctx context.Context, ghID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE github_id=? LIMIT 1", ghID))
}

// LinkGitHub attaches (or refreshes) a GitHub identity on an existing user.
// Called on every OAuth callback so the stored access token stays current.
func (r *UserRepo) LinkGitHub(ctx context.Context, userID, ghID, ghLogin, ghAvatar, ghToken string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET github_id=?, github_login=?, github_avatar_url=?, github_access_token=? WHERE id=?",
		ghID, ghLogin, ghAvatar, ghToken, userID)
	return err
}
