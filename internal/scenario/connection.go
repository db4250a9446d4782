package scenario

import (
	"time"

	"github.com/lawnchairsociety/ascend/server/internal/testclient"
)

// =============================================================================
// Group 3: Push socket
// =============================================================================

// TestSheetPush tests that mutations are pushed to the owner's socket
func TestSheetPush(baseURL string) TestResult {
	const testName = "Sheet Push"

	client, char, err := newHero(baseURL, "push")
	if err != nil {
		return fail(testName, "%v", err)
	}
	defer client.Close()

	if err := client.ConnectEvents(); err != nil {
		return fail(testName, "Socket failed: %v", err)
	}
	if _, ok := client.WaitForMessage("hello", nil, 2*time.Second); !ok {
		return fail(testName, "No hello event")
	}

	logAction(testName, "Awarding XP while subscribed")
	m, err := client.GainExperience(char.ID, 500)
	if err != nil {
		return fail(testName, "Experience failed: %v", err)
	}

	ev, ok := client.WaitForMessage("sheet", func(ev testclient.Event) bool {
		return ev.CharacterID == char.ID
	}, 2*time.Second)
	logResult(testName, ok, "sheet event received")
	if !ok {
		return fail(testName, "No sheet event, got %v", client.GetMessages())
	}
	if ev.Revision != m.Character.Revision || ev.Sheet == nil || ev.Sheet.Level != m.Sheet.Level {
		return fail(testName, "Pushed revision %d level %v, want %d/%d", ev.Revision, ev.Sheet, m.Character.Revision, m.Sheet.Level)
	}

	if err := client.DeleteCharacter(char.ID); err != nil {
		return fail(testName, "Delete failed: %v", err)
	}
	if _, ok := client.WaitForMessage("character_deleted", nil, 2*time.Second); !ok {
		return fail(testName, "No character_deleted event")
	}

	return pass(testName, "Sheet and delete events pushed")
}
