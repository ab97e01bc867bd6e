package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/query"
)

func TestAudit_ListsRecords(t *testing.T) {
	token, db := runPersisted(t, "2")

	out, _, err := executeCommand(t, "audit", "--db", db, "--run", token)
	require.NoError(t, err)
	assert.Contains(t, out, "2 record(s)")
	assert.Contains(t, out, "supply_drip: fired")
	assert.Contains(t, out, "adjust_variable variables.supply: 1 -> 1.25")
}

func TestAudit_FilterByTurn(t *testing.T) {
	token, db := runPersisted(t, "3")

	out, _, err := executeCommand(t, "audit", "--db", db, "--run", token,
		"--rule", "supply_drip", "--from-turn", "1", "--to-turn", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 record(s)")
	assert.Contains(t, out, "turn 1")
}

func TestAudit_RejectsUnknownStatus(t *testing.T) {
	token, db := runPersisted(t, "1")

	_, _, err := executeCommand(t, "audit", "--db", db, "--run", token, "--status", "exploded")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBuildAuditFilter(t *testing.T) {
	f, err := buildAuditFilter(&AuditOptions{FromTurn: -1, ToTurn: -1})
	require.NoError(t, err)
	assert.Nil(t, f, "no flags selects the whole run")

	f, err = buildAuditFilter(&AuditOptions{Rule: "r", FromTurn: -1, ToTurn: -1})
	require.NoError(t, err)
	assert.Equal(t, query.RuleIs{ID: "r"}, f)

	f, err = buildAuditFilter(&AuditOptions{Rule: "r", Status: "failed", Errors: true, FromTurn: 0, ToTurn: 4})
	require.NoError(t, err)
	and, ok := f.(query.And)
	require.True(t, ok)
	assert.Equal(t, []query.Filter{
		query.RuleIs{ID: "r"},
		query.StatusIs{Status: engine.StatusFailed},
		query.HasError{},
		query.TurnBetween{From: 0, To: 4},
	}, and.Filters)
}
