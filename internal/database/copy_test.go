package database

import (
	"math/big"
	"testing"

	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

func seedCopySource(t *testing.T, db *Database) (*Account, *Character) {
	t.Helper()
	account := createTestAccount(t, db, "veteran")
	if err := db.SetBanned(account.ID, true); err != nil {
		t.Fatalf("SetBanned failed: %v", err)
	}

	char, err := db.CreateCharacter(account.ID, "Ascendant")
	if err != nil {
		t.Fatalf("Failed to create character: %v", err)
	}
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	p := char.Progress
	rev := p.Revision
	p.Snapshot.Level = 42
	p.Snapshot.PrestigeLevel = 2
	p.UnspentParagon = big.NewInt(77)
	p.Snapshot.Stats[stats.Dexterity] = stats.Components{Base: 90, Tier: 4, Bonus: huge, Paragon: big.NewInt(5)}
	p.Revision++
	if err := db.SaveCharacter(char, rev); err != nil {
		t.Fatalf("SaveCharacter failed: %v", err)
	}
	return account, char
}

func TestCopyTo(t *testing.T) {
	src := setupTestDB(t)
	dst := setupTestDB(t)
	account, char := seedCopySource(t, src)

	result, err := src.CopyTo(dst, false)
	if err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}
	want := CopyStats{Accounts: 1, Characters: 1, Stats: int64(len(stats.AllStats))}
	if result != want {
		t.Errorf("CopyTo stats = %+v, want %+v", result, want)
	}

	copied, err := dst.GetAccountByUsername("veteran")
	if err != nil {
		t.Fatalf("GetAccountByUsername on copy failed: %v", err)
	}
	if copied.ID != account.ID || !copied.Banned || copied.PasswordHash != account.PasswordHash {
		t.Errorf("Copied account = %+v, want id %d banned with the same hash", copied, account.ID)
	}

	loaded, err := dst.GetCharacterByID(char.ID)
	if err != nil {
		t.Fatalf("GetCharacterByID on copy failed: %v", err)
	}
	lp := loaded.Progress
	if lp.Snapshot.Level != 42 || lp.Snapshot.PrestigeLevel != 2 || lp.Revision != char.Progress.Revision {
		t.Errorf("Copied level/prestige/revision = %d/%d/%d", lp.Snapshot.Level, lp.Snapshot.PrestigeLevel, lp.Revision)
	}
	if lp.UnspentParagon.String() != "77" {
		t.Errorf("Copied unspent paragon = %s, want 77", lp.UnspentParagon)
	}
	dex := lp.Snapshot.Get(stats.Dexterity)
	if dex.Bonus.String() != "123456789012345678901234567890" || dex.Tier != 4 {
		t.Errorf("Copied dexterity = %+v", dex)
	}
}

func TestCopyTo_Idempotent(t *testing.T) {
	src := setupTestDB(t)
	dst := setupTestDB(t)
	seedCopySource(t, src)

	if _, err := src.CopyTo(dst, false); err != nil {
		t.Fatalf("First CopyTo failed: %v", err)
	}
	again, err := src.CopyTo(dst, false)
	if err != nil {
		t.Fatalf("Second CopyTo failed: %v", err)
	}
	if again.Total() != 0 {
		t.Errorf("Second copy wrote %d rows, want 0", again.Total())
	}

	// New rows in the copy must not collide with preserved IDs.
	fresh := createTestAccount(t, dst, "newcomer")
	if fresh.ID <= 1 {
		t.Errorf("New account ID = %d, want above the copied IDs", fresh.ID)
	}
}

func TestCopyTo_DryRun(t *testing.T) {
	src := setupTestDB(t)
	dst := setupTestDB(t)
	seedCopySource(t, src)

	result, err := src.CopyTo(dst, true)
	if err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	if result.Accounts != 1 || result.Characters != 1 {
		t.Errorf("Dry run stats = %+v, want one account and one character", result)
	}

	totals, err := dst.Totals()
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.Accounts != 0 {
		t.Errorf("Dry run wrote %d accounts", totals.Accounts)
	}
}
