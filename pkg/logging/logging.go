// Package logging builds the process-wide structured logger
package logging

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
)

// New creates a logger that writes one JSON document per message to
// stdout. Pretty mode indents the output for local development.
func New(pretty bool) ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		var data []byte
		var err error
		if pretty {
			data, err = json.MarshalIndent(msg, "", "  ")
		} else {
			data, err = json.Marshal(msg)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
			return
		}
		fmt.Fprintln(os.Stdout, string(data))
	})
}
