package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/repository"
)

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewUserRepository(pool *pgxpool.Pool, tx *TxManager) *UserRepository {
	if tx == nil {
		tx = NewTxManager(pool, nil)
	}
	return &UserRepository{pool: pool, tx: tx}
}

// db returns the transaction carried by ctx, or the pool.
func (r *UserRepository) db(ctx context.Context) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return r.pool
}

const userColumns = `id, username, fullname, enabled, kind, description, comment, phone_no,
	im_handle, office, department, sex, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var id uuid.UUID
	var kind, sex string
	d := &u.Details
	if err := row.Scan(&id, &u.Username, &u.Fullname, &u.Enabled, &kind, &d.Description, &d.Comment,
		&d.PhoneNo, &d.IMHandle, &d.Office, &d.Department, &sex, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.String()
	u.Kind = entity.Kind(kind)
	d.Sex = entity.Sex(sex)
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if _, inTx := txFrom(ctx); inTx {
		// lock the row for the rest of the transaction
		q += ` FOR UPDATE`
	}
	u, err := scanUser(r.db(ctx).QueryRow(ctx, q, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadAssociations(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.db(ctx).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := r.loadAssociations(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *UserRepository) loadAssociations(ctx context.Context, u *entity.User) error {
	db := r.db(ctx)

	rows, err := db.Query(ctx, `
		SELECT r.name, r.description
		FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, u.ID)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	u.Roles, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Role, error) {
		var role entity.Role
		err := row.Scan(&role.Name, &role.Description)
		return role, err
	})
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}

	rows, err = db.Query(ctx, `
		SELECT pref_key, pref_value FROM user_preferences WHERE user_id = $1 ORDER BY pref_key
	`, u.ID)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	u.Preferences, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.UserPreference, error) {
		p := entity.UserPreference{Username: u.Username}
		err := row.Scan(&p.Key, &p.Value)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	rows, err = db.Query(ctx, `
		SELECT id, password, created_at FROM user_passwords WHERE user_id = $1 ORDER BY created_at, id
	`, u.ID)
	if err != nil {
		return fmt.Errorf("load password history: %w", err)
	}
	u.Passwords, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.UserPassword, error) {
		var (
			id       int64
			password string
			at       time.Time
		)
		if err := row.Scan(&id, &password, &at); err != nil {
			return nil, err
		}
		return entity.RestoreUserPassword(id, u.Username, password, at.UTC()), nil
	})
	if err != nil {
		return fmt.Errorf("load password history: %w", err)
	}
	return nil
}

// Save writes the whole aggregate in one transaction, joining the caller's if there is one.
func (r *UserRepository) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	if u == nil || u.Username == "" {
		return nil, fmt.Errorf("%w: username is required", entity.ErrInvalidArgument)
	}
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if u.IsNew() {
			if err := r.insertUser(ctx, u); err != nil {
				return err
			}
		} else if err := r.updateUser(ctx, u); err != nil {
			return err
		}
		if err := r.syncRoles(ctx, u); err != nil {
			return err
		}
		if err := r.syncPreferences(ctx, u); err != nil {
			return err
		}
		return r.appendPasswords(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func kindOf(u *entity.User) string {
	if u.Kind == "" {
		return string(entity.KindRegular)
	}
	return string(u.Kind)
}

func (r *UserRepository) insertUser(ctx context.Context, u *entity.User) error {
	id := uuid.New()
	var image []byte
	if data, loaded := u.Details.Image.Bytes(); loaded {
		image = data
	}
	d := u.Details
	err := r.db(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, fullname, enabled, kind, description, comment, phone_no,
			im_handle, office, department, sex, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, id, u.Username, u.Fullname, u.Enabled, kindOf(u), d.Description, d.Comment, d.PhoneNo,
		d.IMHandle, d.Office, d.Department, string(d.Sex), image).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("user %q: %w", u.Username, repository.ErrDuplicate)
		}
		return err
	}
	u.ID = id.String()
	if u.Kind == "" {
		u.Kind = entity.KindRegular
	}
	return nil
}

func (r *UserRepository) updateUser(ctx context.Context, u *entity.User) error {
	db := r.db(ctx)
	var current string
	if err := db.QueryRow(ctx, `SELECT username FROM users WHERE id = $1 FOR UPDATE`, u.ID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if current != u.Username {
		return fmt.Errorf("%w: username cannot change from %q to %q", entity.ErrInvalidArgument, current, u.Username)
	}

	d := u.Details
	args := []any{u.ID, u.Fullname, u.Enabled, kindOf(u), d.Description, d.Comment, d.PhoneNo,
		d.IMHandle, d.Office, d.Department, string(d.Sex)}
	setImage := ""
	if data, loaded := d.Image.Bytes(); loaded {
		args = append(args, data)
		setImage = ", image = $12"
	}
	return db.QueryRow(ctx, `
		UPDATE users
		SET fullname = $2, enabled = $3, kind = $4, description = $5, comment = $6, phone_no = $7,
			im_handle = $8, office = $9, department = $10, sex = $11, updated_at = now()`+setImage+`
		WHERE id = $1
		RETURNING created_at, updated_at
	`, args...).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) syncRoles(ctx context.Context, u *entity.User) error {
	db := r.db(ctx)
	if _, err := db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, u.ID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range u.Roles {
		var roleID int64
		if err := db.QueryRow(ctx, `
			INSERT INTO roles (name, description) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE
			SET description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE roles.description END,
				updated_at = now()
			RETURNING id
		`, role.Name, role.Description).Scan(&roleID); err != nil {
			return fmt.Errorf("upsert role %s: %w", role.Name, err)
		}
		if _, err := db.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			ON CONFLICT (user_id, role_id) DO NOTHING
		`, u.ID, roleID); err != nil {
			return fmt.Errorf("assign role %s: %w", role.Name, err)
		}
	}
	return nil
}

func (r *UserRepository) syncPreferences(ctx context.Context, u *entity.User) error {
	db := r.db(ctx)
	keys := make([]string, 0, len(u.Preferences))
	for i := range u.Preferences {
		u.Preferences[i].Username = u.Username
		keys = append(keys, u.Preferences[i].Key)
	}
	if _, err := db.Exec(ctx, `
		DELETE FROM user_preferences WHERE user_id = $1 AND NOT (pref_key = ANY($2))
	`, u.ID, keys); err != nil {
		return fmt.Errorf("prune preferences: %w", err)
	}
	for _, p := range u.Preferences {
		if _, err := db.Exec(ctx, `
			INSERT INTO user_preferences (user_id, pref_key, pref_value) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, pref_key) DO UPDATE SET pref_value = EXCLUDED.pref_value
		`, u.ID, p.Key, p.Value); err != nil {
			return fmt.Errorf("upsert preference %s: %w", p.Key, err)
		}
	}
	return nil
}

// appendPasswords inserts credentials that have no storage identity yet. Stored
// history rows are never updated or deleted here.
func (r *UserRepository) appendPasswords(ctx context.Context, u *entity.User) error {
	db := r.db(ctx)
	for i, p := range u.Passwords {
		if !p.IsNew() {
			continue
		}
		var id int64
		if err := db.QueryRow(ctx, `
			INSERT INTO user_passwords (user_id, password, created_at) VALUES ($1, $2, $3) RETURNING id
		`, u.ID, p.Password(), p.CreatedAt()).Scan(&id); err != nil {
			return fmt.Errorf("append password: %w", err)
		}
		u.Passwords[i] = p.WithID(id)
	}
	return nil
}

func (r *UserRepository) Remove(ctx context.Context, u *entity.User) error {
	if u == nil || u.IsNew() {
		return repository.ErrNotFound
	}
	// preferences, role links and password history go with the row (ON DELETE CASCADE)
	res, err := r.db(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&ok)
	return ok, err
}

func (r *UserRepository) LoadImage(ctx context.Context, u *entity.User) error {
	if u == nil || u.IsNew() {
		return repository.ErrNotFound
	}
	var data []byte
	if err := r.db(ctx).QueryRow(ctx, `SELECT image FROM users WHERE id = $1`, u.ID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	u.Details.Image = entity.LoadedImage(data)
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
