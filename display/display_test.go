package display

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().Bool("json", false, "")
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return cmd
}

func TestShouldOutputJSONExplicitFlag(t *testing.T) {
	assert.True(t, ShouldOutputJSON(newJSONCommand(t, "--json")))
	assert.False(t, ShouldOutputJSON(newJSONCommand(t, "--json=false")))
}

func TestOutputJSONRoundTrips(t *testing.T) {
	// Marshal failures surface as errors rather than partial writes
	err := OutputJSON(map[string]interface{}{"bad": func() {}})
	assert.Error(t, err)

	assert.NoError(t, OutputJSON(map[string]string{"ok": "yes"}))
}
