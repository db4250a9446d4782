package database

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lawnchairsociety/ascend/server/internal/progression"
	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

// ErrCharacterNotFound is returned when a character lookup fails.
var ErrCharacterNotFound = errors.New("character not found")

// ErrCharacterExists is returned when trying to create a duplicate character.
var ErrCharacterExists = errors.New("character name already taken")

// ErrStaleRevision is returned when a save races another writer of the same character.
var ErrStaleRevision = errors.New("character was modified concurrently")

// ErrEmptyCharacterName is returned when creating a character without a name.
var ErrEmptyCharacterName = errors.New("character name cannot be empty")

// Character is a persisted character: identity plus its progression state.
type Character struct {
	ID         int64
	AccountID  int64
	Name       string
	Progress   *progression.Character
	CreatedAt  time.Time
	LastPlayed *time.Time
}

// CreateCharacter creates a new character for an account with default progression.
func (d *Database) CreateCharacter(accountID int64, name string) (*Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyCharacterName
	}

	progress := progression.New()

	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := d.insertReturningID(tx,
		`INSERT INTO characters (account_id, name, level, experience, prestige_level, unspent_points, unspent_paragon, revision)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, name, progress.Snapshot.Level, progress.Experience, progress.Snapshot.PrestigeLevel,
		progress.UnspentPoints, progress.UnspentParagon.String(), progress.Revision,
	)
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			return nil, ErrCharacterExists
		}
		return nil, fmt.Errorf("failed to create character: %w", err)
	}

	if err := d.writeStats(tx, id, progress.Snapshot); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit character: %w", err)
	}

	return &Character{
		ID:        id,
		AccountID: accountID,
		Name:      name,
		Progress:  progress,
		CreatedAt: time.Now(),
	}, nil
}

const characterColumns = `id, account_id, name, level, experience, prestige_level, unspent_points,
	unspent_paragon, revision, created_at, last_played`

func scanCharacter(row interface{ Scan(...any) error }) (*Character, error) {
	char := &Character{Progress: progression.New()}
	var paragon string
	var createdAt sql.NullTime
	var lastPlayed sql.NullTime

	err := row.Scan(
		&char.ID, &char.AccountID, &char.Name,
		&char.Progress.Snapshot.Level, &char.Progress.Experience, &char.Progress.Snapshot.PrestigeLevel,
		&char.Progress.UnspentPoints, &paragon, &char.Progress.Revision,
		&createdAt, &lastPlayed,
	)
	if err != nil {
		return nil, err
	}

	pool, err := parseBigInt(paragon)
	if err != nil {
		return nil, fmt.Errorf("character %d unspent paragon: %w", char.ID, err)
	}
	char.Progress.UnspentParagon = pool

	if createdAt.Valid {
		char.CreatedAt = createdAt.Time
	}
	if lastPlayed.Valid {
		char.LastPlayed = &lastPlayed.Time
	}
	return char, nil
}

// GetCharacterByID retrieves a character and its stat rows.
func (d *Database) GetCharacterByID(id int64) (*Character, error) {
	char, err := scanCharacter(d.db.QueryRow(
		d.qb.Build("SELECT "+characterColumns+" FROM characters WHERE id = ?"), id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	if err := d.loadStats(char); err != nil {
		return nil, err
	}
	return char, nil
}

// GetCharactersByAccount retrieves all characters for an account, oldest first.
func (d *Database) GetCharactersByAccount(accountID int64) ([]*Character, error) {
	rows, err := d.db.Query(
		d.qb.Build("SELECT "+characterColumns+" FROM characters WHERE account_id = ? ORDER BY id"),
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}

	var characters []*Character
	for rows.Next() {
		char, err := scanCharacter(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, char)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate characters: %w", err)
	}
	rows.Close()

	for _, char := range characters {
		if err := d.loadStats(char); err != nil {
			return nil, err
		}
	}
	return characters, nil
}

func (d *Database) loadStats(char *Character) error {
	rows, err := d.db.Query(
		d.qb.Build("SELECT stat, base, tier, bonus, paragon FROM character_stats WHERE character_id = ?"),
		char.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, bonus, paragon string
		var comp stats.Components
		if err := rows.Scan(&name, &comp.Base, &comp.Tier, &bonus, &paragon); err != nil {
			return fmt.Errorf("failed to scan stat: %w", err)
		}
		stat, err := stats.ParseStat(name)
		if err != nil {
			return fmt.Errorf("character %d: %w", char.ID, err)
		}
		if comp.Bonus, err = parseBigInt(bonus); err != nil {
			return fmt.Errorf("character %d %s bonus: %w", char.ID, stat, err)
		}
		if comp.Paragon, err = parseBigInt(paragon); err != nil {
			return fmt.Errorf("character %d %s paragon: %w", char.ID, stat, err)
		}
		char.Progress.Snapshot.Stats[stat] = comp
	}
	return rows.Err()
}

// SaveCharacter persists the character's progression if the stored revision
// still equals expectedRevision. Otherwise nothing is written and
// ErrStaleRevision is returned.
func (d *Database) SaveCharacter(char *Character, expectedRevision int64) error {
	p := char.Progress
	if p == nil {
		return fmt.Errorf("character %d has no progression state", char.ID)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	paragon := "0"
	if p.UnspentParagon != nil {
		paragon = p.UnspentParagon.String()
	}

	result, err := tx.Exec(d.qb.Build(
		`UPDATE characters SET level = ?, experience = ?, prestige_level = ?, unspent_points = ?,
		 unspent_paragon = ?, revision = ?, last_played = CURRENT_TIMESTAMP
		 WHERE id = ? AND revision = ?`),
		p.Snapshot.Level, p.Experience, p.Snapshot.PrestigeLevel, p.UnspentPoints,
		paragon, p.Revision, char.ID, expectedRevision,
	)
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRow(d.qb.Build("SELECT 1 FROM characters WHERE id = ?"), char.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCharacterNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check character: %w", err)
		}
		return fmt.Errorf("%w: expected revision %d", ErrStaleRevision, expectedRevision)
	}

	if err := d.writeStats(tx, char.ID, p.Snapshot); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit character: %w", err)
	}
	return nil
}

func (d *Database) writeStats(tx *sql.Tx, characterID int64, snap stats.Snapshot) error {
	query := d.qb.Build(
		"INSERT INTO character_stats (character_id, stat, base, tier, bonus, paragon) VALUES (?, ?, ?, ?, ?, ?)" +
			d.dialect.Upsert([]string{"character_id", "stat"}, []string{"base", "tier", "bonus", "paragon"}),
	)
	for _, s := range stats.AllStats {
		comp := snap.Get(s)
		_, err := tx.Exec(query,
			characterID, s.String(), comp.Base, comp.Tier,
			comp.BonusOrZero().String(), comp.ParagonOrZero().String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", s, err)
		}
	}
	return nil
}

// DeleteCharacter removes a character; its stat rows cascade.
func (d *Database) DeleteCharacter(id int64) error {
	result, err := d.db.Exec(d.qb.Build("DELETE FROM characters WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	if n == 0 {
		return ErrCharacterNotFound
	}
	return nil
}

// CharacterBelongsToAccount reports whether the character is owned by the account.
func (d *Database) CharacterBelongsToAccount(characterID, accountID int64) (bool, error) {
	var count int
	err := d.db.QueryRow(
		d.qb.Build("SELECT COUNT(*) FROM characters WHERE id = ? AND account_id = ?"),
		characterID, accountID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check character ownership: %w", err)
	}
	return count > 0, nil
}

// CharacterNameExists checks whether a character name is taken (case-insensitive).
func (d *Database) CharacterNameExists(name string) (bool, error) {
	var count int
	err := d.db.QueryRow(
		d.qb.Build("SELECT COUNT(*) FROM characters WHERE name = ?"),
		strings.TrimSpace(name),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check character name: %w", err)
	}
	return count > 0, nil
}

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %q", s)
	}
	return v, nil
}
