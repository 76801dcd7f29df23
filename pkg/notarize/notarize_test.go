package notarize

import (
	"errors"
	"reflect"
	"testing"
)

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvAppleID, "dev@example.com")
	t.Setenv(EnvPassword, "abcd-efgh-ijkl-mnop")
	t.Setenv(EnvTeamID, "ABCD123456")

	creds, ok := CredentialsFromEnv()
	if !ok {
		t.Fatal("expected complete credentials")
	}
	if creds.AppleID != "dev@example.com" || creds.TeamID != "ABCD123456" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestCredentialsFromEnvIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing apple id", EnvAppleID},
		{"missing password", EnvPassword},
		{"missing team id", EnvTeamID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvAppleID, "dev@example.com")
			t.Setenv(EnvPassword, "abcd-efgh-ijkl-mnop")
			t.Setenv(EnvTeamID, "ABCD123456")
			t.Setenv(tc.unset, "")

			if _, ok := CredentialsFromEnv(); ok {
				t.Error("expected incomplete credentials")
			}
		})
	}
}

func testNotarizer(captured *[][]string, err error) *Notarizer {
	n := New(Credentials{
		AppleID:  "dev@example.com",
		Password: "abcd-efgh-ijkl-mnop",
		TeamID:   "ABCD123456",
	}, nil)
	n.run = func(args ...string) error {
		if err != nil {
			return err
		}
		*captured = append(*captured, args)
		return nil
	}
	return n
}

func TestSubmit(t *testing.T) {
	var calls [][]string
	n := testNotarizer(&calls, nil)

	if err := n.Submit("/out/MyApp-arm64.dmg"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	want := []string{
		"notarytool", "submit", "/out/MyApp-arm64.dmg",
		"--apple-id", "dev@example.com",
		"--password", "abcd-efgh-ijkl-mnop",
		"--team-id", "ABCD123456",
		"--wait",
	}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], want) {
		t.Errorf("unexpected xcrun invocation: %v", calls)
	}
}

func TestStaple(t *testing.T) {
	var calls [][]string
	n := testNotarizer(&calls, nil)

	if err := n.Staple("/out/MyApp-arm64.dmg"); err != nil {
		t.Fatalf("Staple failed: %v", err)
	}

	want := []string{"stapler", "staple", "/out/MyApp-arm64.dmg"}
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], want) {
		t.Errorf("unexpected xcrun invocation: %v", calls)
	}
}

func TestSubmitFailure(t *testing.T) {
	var calls [][]string
	wantErr := errors.New("Invalid credentials")
	n := testNotarizer(&calls, wantErr)

	if err := n.Submit("/out/MyApp-arm64.dmg"); !errors.Is(err, wantErr) {
		t.Fatalf("expected the submission error to propagate, got %v", err)
	}
}
