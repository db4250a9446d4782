package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBanned      = errors.New("account is banned")
	ErrEmptyUsername      = errors.New("username cannot be empty")
)

// Account is a login identity. Characters hang off it by AccountID.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
	LastIP       string
	Banned       bool
}

const accountColumns = "id, username, password_hash, created_at, last_login, last_ip, banned"

// CreateAccount hashes password and stores a new account. Policy checks on
// the password belong to the caller.
func (d *Database) CreateAccount(username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	hash, err := d.hashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := d.insertReturningID(d.db,
		"INSERT INTO accounts (username, password_hash) VALUES (?, ?)", username, hash)
	switch {
	case err != nil && d.dialect.IsDuplicateKeyError(err):
		return nil, ErrAccountExists
	case err != nil:
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &Account{ID: id, Username: username, PasswordHash: hash, CreatedAt: time.Now()}, nil
}

func (d *Database) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ValidateLogin checks credentials and records the login time and address.
// Unknown users and wrong passwords are both ErrInvalidCredentials; a ban is
// only reported once the password has matched.
func (d *Database) ValidateLogin(username, password, ipAddress string) (*Account, error) {
	account, err := d.GetAccountByUsername(username)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if account.Banned {
		return nil, ErrAccountBanned
	}

	if _, err := d.db.Exec(
		d.qb.Build("UPDATE accounts SET last_login = CURRENT_TIMESTAMP, last_ip = ? WHERE id = ?"),
		ipAddress, account.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	now := time.Now()
	account.LastLogin = &now
	account.LastIP = ipAddress
	return account, nil
}

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var (
		a         Account
		createdAt sql.NullTime
		lastLogin sql.NullTime
		lastIP    sql.NullString
		banned    int
	)
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &createdAt, &lastLogin, &lastIP, &banned); err != nil {
		return nil, err
	}
	a.CreatedAt = createdAt.Time
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	a.LastIP = lastIP.String
	a.Banned = banned != 0
	return &a, nil
}

// accountWhere loads the single account matching cond.
func (d *Database) accountWhere(cond string, arg any) (*Account, error) {
	a, err := scanAccount(d.db.QueryRow(
		d.qb.Build("SELECT "+accountColumns+" FROM accounts WHERE "+cond), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername looks an account up by name, ignoring case.
func (d *Database) GetAccountByUsername(username string) (*Account, error) {
	return d.accountWhere("username = ?", strings.TrimSpace(username))
}

func (d *Database) GetAccountByID(accountID int64) (*Account, error) {
	return d.accountWhere("id = ?", accountID)
}

// SetBanned sets or clears the ban flag.
func (d *Database) SetBanned(accountID int64, banned bool) error {
	flag := 0
	if banned {
		flag = 1
	}
	result, err := d.db.Exec(d.qb.Build("UPDATE accounts SET banned = ? WHERE id = ?"), flag, accountID)
	if err != nil {
		return fmt.Errorf("failed to update ban status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ChangePassword replaces the password hash once oldPassword has been verified.
func (d *Database) ChangePassword(accountID int64, oldPassword, newPassword string) error {
	account, err := d.GetAccountByID(accountID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := d.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if _, err := d.db.Exec(d.qb.Build("UPDATE accounts SET password_hash = ? WHERE id = ?"), hash, accountID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Totals counts rows in the player-facing tables.
type Totals struct {
	Accounts   int `json:"accounts"`
	Characters int `json:"characters"`
}

// Totals reports how many accounts and characters exist.
func (d *Database) Totals() (Totals, error) {
	var t Totals
	err := d.db.QueryRow(
		"SELECT (SELECT COUNT(*) FROM accounts), (SELECT COUNT(*) FROM characters)",
	).Scan(&t.Accounts, &t.Characters)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return t, nil
}
