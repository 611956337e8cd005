package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ventureops/internal/model"
	"ventureops/internal/repository"
	"ventureops/pkg/rbac"
)

const userSelect = `SELECT u.id, u.emp_id, u.full_name, u.password_hash, u.role, u.venture_id, u.is_active, u.created_at
  FROM users u`

func scanUser(row scanner) (model.User, error) {
	var (
		u         model.User
		ventureID sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.EmpID, &u.FullName, &u.PasswordHash, &u.Role, &ventureID, &u.IsActive, &createdAt); err != nil {
		return model.User{}, err
	}
	u.VentureID = intPtr(ventureID)
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (emp_id, full_name, password_hash, role, venture_id, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.EmpID, u.FullName, u.PasswordHash, string(u.Role), nullInt(u.VentureID), u.IsActive, toMillis(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u.ID = int(id)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int) (model.User, error) {
	u, err := scanUser(s.sqlDB.QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, repository.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) FindUserByEmpID(ctx context.Context, empID string) (model.User, error) {
	u, err := scanUser(s.sqlDB.QueryRowContext(ctx, userSelect+` WHERE u.emp_id = ?`, empID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, repository.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user %q: %w", empID, err)
	}
	return u, nil
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
	args := newArgs()
	rows, err := s.sqlDB.QueryContext(ctx,
		userSelect+` WHERE `+repository.ScopeClause(scope, repository.UserScopeColumns, args)+
			` ORDER BY u.id LIMIT `+args.Add(page.Limit)+` OFFSET `+args.Add(page.Skip),
		args.Values...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SaveUser(ctx context.Context, u model.User) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET full_name = ?, password_hash = ?, role = ?, venture_id = ?, is_active = ?
		  WHERE id = ?`,
		u.FullName, u.PasswordHash, string(u.Role), nullInt(u.VentureID), u.IsActive, u.ID)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CreateVenture(ctx context.Context, v *model.Venture) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO ventures (name, description) VALUES (?, ?)`, v.Name, nullString(v.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("create venture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("venture id: %w", err)
	}
	v.ID = int(id)
	return nil
}

func scanVenture(row scanner) (model.Venture, error) {
	var (
		v           model.Venture
		description sql.NullString
	)
	if err := row.Scan(&v.ID, &v.Name, &description); err != nil {
		return model.Venture{}, err
	}
	v.Description = stringPtr(description)
	return v, nil
}

func (s *Store) GetVenture(ctx context.Context, id int) (model.Venture, error) {
	v, err := scanVenture(s.sqlDB.QueryRowContext(ctx, `SELECT id, name, description FROM ventures WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Venture{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Venture{}, fmt.Errorf("get venture %d: %w", id, err)
	}
	return v, nil
}

func (s *Store) ListVentures(ctx context.Context, page repository.Page) ([]model.Venture, error) {
	page = page.Normalize()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, description FROM ventures ORDER BY id LIMIT ? OFFSET ?`, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list ventures: %w", err)
	}
	defer rows.Close()
	ventures := []model.Venture{}
	for rows.Next() {
		v, err := scanVenture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venture: %w", err)
		}
		ventures = append(ventures, v)
	}
	return ventures, rows.Err()
}

func (s *Store) SaveVenture(ctx context.Context, v model.Venture) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE ventures SET name = ?, description = ? WHERE id = ?`, v.Name, nullString(v.Description), v.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("save venture %d: %w", v.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
