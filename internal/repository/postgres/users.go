package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

const userSelect = `
	SELECT u.id, u.emp_id, u.full_name, u.password_hash, u.role, u.venture_id, u.is_active, u.created_at
	FROM users u`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.EmpID, &u.FullName, &u.PasswordHash, &u.Role, &u.VentureID, &u.IsActive, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return s.observe(ctx, "insert", "users", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `
			INSERT INTO users (emp_id, full_name, password_hash, role, venture_id, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			u.EmpID, u.FullName, u.PasswordHash, string(u.Role), u.VentureID, u.IsActive, u.CreatedAt.UTC(),
		).Scan(&u.ID)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if err != nil {
			s.logger.Error("Failed to create user", zap.String("emp_id", u.EmpID), zap.Error(err))
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id int) (model.User, error) {
	var u model.User
	err := s.observe(ctx, "select", "users", func(ctx context.Context) error {
		var err error
		u, err = scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user %d: %w", id, err)
		}
		return nil
	})
	return u, err
}

// FindUserByEmpID returns the user with the given employee id.
func (s *Store) FindUserByEmpID(ctx context.Context, empID string) (model.User, error) {
	var u model.User
	err := s.observe(ctx, "select", "users", func(ctx context.Context) error {
		var err error
		u, err = scanUser(s.db.QueryRow(ctx, userSelect+` WHERE u.emp_id = $1`, empID))
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find user %q: %w", empID, err)
		}
		return nil
	})
	return u, err
}

func (s *Store) LookupAccount(ctx context.Context, id int) (rbac.Account, error) {
	u, err := s.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return rbac.Account{}, rbac.ErrAccountNotFound
	}
	if err != nil {
		return rbac.Account{}, err
	}
	return u.Account(), nil
}

func (s *Store) ListUsers(ctx context.Context, scope rbac.Scope, page repository.Page) ([]model.User, error) {
	page = page.Normalize()
	users := []model.User{}
	err := s.observe(ctx, "select", "users", func(ctx context.Context) error {
		args := newArgs()
		rows, err := s.db.Query(ctx,
			userSelect+` WHERE `+repository.ScopeClause(scope, repository.UserScopeColumns, args)+
				` ORDER BY u.id LIMIT `+args.Add(page.Limit)+` OFFSET `+args.Add(page.Skip),
			args.Values...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return fmt.Errorf("scan user: %w", err)
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) SaveUser(ctx context.Context, u model.User) error {
	return s.observe(ctx, "update", "users", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE users SET full_name = $1, password_hash = $2, role = $3, venture_id = $4, is_active = $5
			WHERE id = $6`,
			u.FullName, u.PasswordHash, string(u.Role), u.VentureID, u.IsActive, u.ID)
		if err != nil {
			return fmt.Errorf("save user %d: %w", u.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *Store) CreateVenture(ctx context.Context, v *model.Venture) error {
	return s.observe(ctx, "insert", "ventures", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx,
			`INSERT INTO ventures (name, description) VALUES ($1, $2) RETURNING id`,
			v.Name, v.Description).Scan(&v.ID)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("create venture: %w", err)
		}
		return nil
	})
}

func (s *Store) GetVenture(ctx context.Context, id int) (model.Venture, error) {
	var v model.Venture
	err := s.observe(ctx, "select", "ventures", func(ctx context.Context) error {
		err := s.db.QueryRow(ctx, `SELECT id, name, description FROM ventures WHERE id = $1`, id).
			Scan(&v.ID, &v.Name, &v.Description)
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get venture %d: %w", id, err)
		}
		return nil
	})
	return v, err
}

func (s *Store) ListVentures(ctx context.Context, page repository.Page) ([]model.Venture, error) {
	page = page.Normalize()
	ventures := []model.Venture{}
	err := s.observe(ctx, "select", "ventures", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx,
			`SELECT id, name, description FROM ventures ORDER BY id LIMIT $1 OFFSET $2`, page.Limit, page.Skip)
		if err != nil {
			return fmt.Errorf("list ventures: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var v model.Venture
			if err := rows.Scan(&v.ID, &v.Name, &v.Description); err != nil {
				return fmt.Errorf("scan venture: %w", err)
			}
			ventures = append(ventures, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ventures, nil
}

func (s *Store) SaveVenture(ctx context.Context, v model.Venture) error {
	return s.observe(ctx, "update", "ventures", func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx,
			`UPDATE ventures SET name = $1, description = $2 WHERE id = $3`, v.Name, v.Description, v.ID)
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("save venture %d: %w", v.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}
