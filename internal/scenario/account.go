package scenario

import (
	"net/http"

	"github.com/lawnchairsociety/ascend/server/internal/testclient"
)

// =============================================================================
// Group 1: Accounts
// =============================================================================

// TestHealth checks the server reports itself healthy
func TestHealth(baseURL string) TestResult {
	const testName = "Health"

	health, err := testclient.NewTestClientRaw(baseURL).Health()
	if err != nil {
		return fail(testName, "Health check failed: %v", err)
	}
	logResult(testName, health.Status == "ok", "status "+health.Status)
	if health.Status != "ok" || health.SchemaVersion < 1 {
		return fail(testName, "Unexpected health %+v", health)
	}
	return pass(testName, "Server healthy")
}

// TestAccountSystem tests registration, login and the common rejections
func TestAccountSystem(baseURL string) TestResult {
	const testName = "Account System"

	name := uniqueName("acct")
	password := name + "-Pass123"

	logAction(testName, "Registering "+name)
	client := testclient.NewTestClientRaw(baseURL)
	if err := client.Register(name, password); err != nil {
		return fail(testName, "Registration failed: %v", err)
	}

	logAction(testName, "Registering the same name again")
	err := client.Register(name, password)
	logResult(testName, testclient.StatusOf(err) == http.StatusConflict, "duplicate rejected")
	if testclient.StatusOf(err) != http.StatusConflict {
		return fail(testName, "Duplicate registration: got %v, want 409", err)
	}

	logAction(testName, "Logging in with a wrong password")
	err = client.Login(name, "Wrong-Pass999")
	if testclient.StatusOf(err) != http.StatusUnauthorized {
		return fail(testName, "Wrong password: got %v, want 401", err)
	}

	logAction(testName, "Logging in")
	if err := client.Login(name, password); err != nil {
		return fail(testName, "Login failed: %v", err)
	}
	chars, err := client.Characters()
	if err != nil {
		return fail(testName, "Listing characters failed: %v", err)
	}
	if len(chars) != 0 {
		return fail(testName, "New account has %d characters", len(chars))
	}

	logAction(testName, "Changing the password")
	newPassword := name + "-Next456"
	if err := client.ChangePassword(password, newPassword); err != nil {
		return fail(testName, "Password change failed: %v", err)
	}
	if err := client.Login(name, password); testclient.StatusOf(err) != http.StatusUnauthorized {
		return fail(testName, "Old password after change: got %v, want 401", err)
	}
	if err := client.Login(name, newPassword); err != nil {
		return fail(testName, "Login with new password failed: %v", err)
	}

	return pass(testName, "Register, reject duplicate, reject bad password, login, change password")
}

// TestCharacterOwnership tests that one account cannot see another's characters
func TestCharacterOwnership(baseURL string) TestResult {
	const testName = "Character Ownership"

	owner, err := testclient.NewTestClient(uniqueName("owner"), baseURL)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer owner.Close()
	other, err := testclient.NewTestClient(uniqueName("other"), baseURL)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer other.Close()

	char, err := owner.CreateCharacter(uniqueName("Owned"))
	if err != nil {
		return fail(testName, "Create character failed: %v", err)
	}

	logAction(testName, "Reading the sheet as another account")
	_, err = other.Sheet(char.ID)
	logResult(testName, testclient.StatusOf(err) == http.StatusNotFound, "foreign sheet hidden")
	if testclient.StatusOf(err) != http.StatusNotFound {
		return fail(testName, "Foreign sheet: got %v, want 404", err)
	}
	if _, err := other.GainExperience(char.ID, 10); testclient.StatusOf(err) != http.StatusNotFound {
		return fail(testName, "Foreign mutation: got %v, want 404", err)
	}

	return pass(testName, "Foreign characters are invisible")
}
