// Command multiform serves, fills and lints multi-form pages built from
// declarative form definitions or OpenAPI component schemas.
package main

import (
	"os"
)

func main() {
	if err := newCLI().command().Execute(); err != nil {
		os.Exit(1)
	}
}
