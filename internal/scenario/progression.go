package scenario

import (
	"fmt"
	"net/http"

	"github.com/lawnchairsociety/ascend/server/internal/testclient"
)

// =============================================================================
// Group 2: Progression
// =============================================================================

// maxLevelXP is more experience than the whole level curve costs.
const maxLevelXP = 1_000_000

// newHero registers an account and creates one character on it.
func newHero(baseURL, base string) (*testclient.TestClient, *testclient.Character, error) {
	client, err := testclient.NewTestClient(uniqueName(base), baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connection failed: %w", err)
	}
	char, err := client.CreateCharacter(uniqueName("Hero"))
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("create character failed: %w", err)
	}
	return client, char, nil
}

// TestLevelUp tests that experience grants levels and stat points
func TestLevelUp(baseURL string) TestResult {
	const testName = "Level Up"

	client, char, err := newHero(baseURL, "lvl")
	if err != nil {
		return fail(testName, "%v", err)
	}
	defer client.Close()

	logAction(testName, "Awarding 1000 XP")
	m, err := client.GainExperience(char.ID, 1000)
	if err != nil {
		return fail(testName, "Experience failed: %v", err)
	}
	if m.LevelUp == nil || m.LevelUp.LevelsGained < 1 {
		return fail(testName, "Expected a level up, got %+v", m.LevelUp)
	}
	logResult(testName, true, fmt.Sprintf("gained %d levels", m.LevelUp.LevelsGained))

	if m.LevelUp.StatPoints != 5*m.LevelUp.LevelsGained || m.Character.UnspentPoints != m.LevelUp.StatPoints {
		return fail(testName, "Stat points %d for %d levels, unspent %d",
			m.LevelUp.StatPoints, m.LevelUp.LevelsGained, m.Character.UnspentPoints)
	}
	if m.Sheet.Level != 1+m.LevelUp.LevelsGained {
		return fail(testName, "Sheet level %d, want %d", m.Sheet.Level, 1+m.LevelUp.LevelsGained)
	}

	if _, err := client.GainExperience(char.ID, 0); testclient.StatusOf(err) != http.StatusBadRequest {
		return fail(testName, "Zero XP: got %v, want 400", err)
	}

	return pass(testName, fmt.Sprintf("Reached level %d", m.Sheet.Level))
}

// TestAllocateAndTierUp tests base allocation up to the soft cap and a tier-up
func TestAllocateAndTierUp(baseURL string) TestResult {
	const testName = "Allocate And Tier Up"

	client, char, err := newHero(baseURL, "tier")
	if err != nil {
		return fail(testName, "%v", err)
	}
	defer client.Close()

	if _, err := client.GainExperience(char.ID, maxLevelXP); err != nil {
		return fail(testName, "Experience failed: %v", err)
	}

	logAction(testName, "Allocating 100 points to strength")
	m, err := client.Allocate(char.ID, "str", 100)
	if err != nil {
		return fail(testName, "Allocate failed: %v", err)
	}
	if got := m.Sheet.Effective["strength"]; !near(got, 100) {
		return fail(testName, "Strength %.2f after allocation, want 100", got)
	}

	if _, err := client.Allocate(char.ID, "str", 1); testclient.StatusOf(err) != http.StatusUnprocessableEntity {
		return fail(testName, "Allocation past the cap: got %v, want 422", err)
	}
	if _, err := client.TierUp(char.ID, "dex"); testclient.StatusOf(err) != http.StatusUnprocessableEntity {
		return fail(testName, "Tier-up of an uncapped stat: got %v, want 422", err)
	}

	logAction(testName, "Tiering up strength")
	m, err = client.TierUp(char.ID, "strength")
	if err != nil {
		return fail(testName, "Tier-up failed: %v", err)
	}
	got := m.Sheet.Effective["strength"]
	logResult(testName, near(got, 150), fmt.Sprintf("strength %.2f", got))
	if !near(got, 150) {
		return fail(testName, "Strength %.2f after tier-up, want 150", got)
	}

	return pass(testName, "Base capped at 100, tier-up adds 50")
}

// TestGearBigNumbers tests gear bonuses far beyond 64-bit range
func TestGearBigNumbers(baseURL string) TestResult {
	const testName = "Gear Big Numbers"

	client, char, err := newHero(baseURL, "gear")
	if err != nil {
		return fail(testName, "%v", err)
	}
	defer client.Close()

	const huge = "1000000000000000000000000000000" // 1e30

	logAction(testName, "Equipping a 1e30 bonus on wisdom")
	m, err := client.Equip(char.ID, "wis", huge)
	if err != nil {
		return fail(testName, "Equip failed: %v", err)
	}
	if got := m.Sheet.Effective["wisdom"]; !near(got, 600) {
		return fail(testName, "Wisdom %.4f with 1e30 gear, want 600", got)
	}

	if _, err := client.Unequip(char.ID, "wis", huge+"0"); testclient.StatusOf(err) != http.StatusUnprocessableEntity {
		return fail(testName, "Over-unequip: got %v, want 422", err)
	}

	m, err = client.Unequip(char.ID, "wis", huge)
	if err != nil {
		return fail(testName, "Unequip failed: %v", err)
	}
	if got := m.Sheet.Effective["wisdom"]; got != 0 {
		return fail(testName, "Wisdom %.4f after unequip, want 0", got)
	}

	return pass(testName, "1e30 gear bonus round-trips")
}

// TestPrestigeAndParagon tests the prestige reset and paragon spending
func TestPrestigeAndParagon(baseURL string) TestResult {
	const testName = "Prestige And Paragon"

	client, char, err := newHero(baseURL, "pres")
	if err != nil {
		return fail(testName, "%v", err)
	}
	defer client.Close()

	if _, err := client.Prestige(char.ID); testclient.StatusOf(err) != http.StatusUnprocessableEntity {
		return fail(testName, "Prestige below max level: got %v, want 422", err)
	}
	if _, err := client.GainExperience(char.ID, maxLevelXP); err != nil {
		return fail(testName, "Experience failed: %v", err)
	}

	logAction(testName, "Prestiging")
	m, err := client.Prestige(char.ID)
	if err != nil {
		return fail(testName, "Prestige failed: %v", err)
	}
	if m.Sheet.PrestigeLevel != 1 || m.Sheet.Level != 1 || !near(m.Sheet.PrestigeMultiplier, 1.1) {
		return fail(testName, "After prestige: level %d, prestige %d, multiplier %.2f",
			m.Sheet.Level, m.Sheet.PrestigeLevel, m.Sheet.PrestigeMultiplier)
	}
	if m.Character.UnspentParagon != "1000" {
		return fail(testName, "Paragon pool %s, want 1000", m.Character.UnspentParagon)
	}

	logAction(testName, "Spending 999 paragon on intelligence")
	m, err = client.AllocateParagon(char.ID, "int", "999")
	if err != nil {
		return fail(testName, "Paragon failed: %v", err)
	}
	got := m.Sheet.Effective["intelligence"]
	logResult(testName, near(got, 33), fmt.Sprintf("intelligence %.4f", got))
	if !near(got, 33) {
		return fail(testName, "Intelligence %.4f, want 33", got)
	}
	if _, err := client.AllocateParagon(char.ID, "int", "2"); testclient.StatusOf(err) != http.StatusUnprocessableEntity {
		return fail(testName, "Overspending paragon: got %v, want 422", err)
	}

	return pass(testName, "Prestige grants paragon, paragon feeds the log curve")
}

// TestPreview tests the stateless sheet preview
func TestPreview(baseURL string) TestResult {
	const testName = "Preview"

	snapshot := map[string]any{
		"level":          10,
		"prestige_level": 0,
		"stats": map[string]any{
			"strength": map[string]any{"base": 100, "tier": 2},
		},
	}
	sheet, err := testclient.NewTestClientRaw(baseURL).Preview(snapshot)
	if err != nil {
		return fail(testName, "Preview failed: %v", err)
	}
	if got := sheet.Effective["strength"]; !near(got, 200) {
		return fail(testName, "Strength %.2f, want 200", got)
	}
	return pass(testName, "Preview computes without an account")
}
