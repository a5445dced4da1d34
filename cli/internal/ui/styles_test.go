package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/execution"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"alice":  "AL",
		" bo ":   "BO",
		"x":      "X",
		"élodie": "ÉL",
	}
	for name, want := range tests {
		assert.Equal(t, want, Initials(name), name)
	}
}

func TestAvatarColorIsStable(t *testing.T) {
	assert.Equal(t, AvatarColor("alice"), AvatarColor("alice"))
	assert.NotEqual(t, AvatarColor("alice"), AvatarColor("bob"))
	assert.Len(t, string(AvatarColor("carol")), 7)
}

func TestParticipantsViewMarksSelfOnce(t *testing.T) {
	view := ParticipantsView([]string{"alice", "bob", "alice"}, "alice", 30)
	assert.Equal(t, 1, strings.Count(view, "(you)"))
	assert.Contains(t, view, "bob")

	assert.Contains(t, ParticipantsView(nil, "alice", 30), "Nobody")
}

func TestRunSummaryView(t *testing.T) {
	view := RunSummaryView(RunSummary{
		File:     "main.py",
		Language: protocol.LanguagePython,
		Result: execution.Result{
			Status:   "Runtime Error (NZEC)",
			Stderr:   "Traceback",
			Duration: 250 * time.Millisecond,
		},
	})

	for _, want := range []string{"Run Summary", "main.py", "python", "Runtime Error", "250ms", "Traceback"} {
		assert.Contains(t, view, want)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcd...", truncateString("abcdefghij", 7))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}
