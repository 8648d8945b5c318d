// Package display decides between human-readable and machine-readable
// command output.
package display

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/curio/errors"
)

// ShouldOutputJSON reports whether a command should emit JSON. An explicit
// --json flag wins; otherwise piped output defaults to JSON so scripts get
// parseable results without asking.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return !stdoutIsTerminal()
	}

	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	return !stdoutIsTerminal()
}

// OutputJSON marshals v and prints it to stdout. Terminal output is
// indented; piped output is compact.
func OutputJSON(v interface{}) error {
	var (
		data []byte
		err  error
	)
	if stdoutIsTerminal() {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON output")
	}

	data = append(data, '\n')
	_, err = os.Stdout.Write(data)
	return err
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
