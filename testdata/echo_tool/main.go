// echo_tool is a minimal command tool for manual testing. It reads the JSON
// arguments from stdin and writes them back under "echo". Arguments with
// "fail": true make it exit non-zero.
// Usage: go run ./testdata/echo_tool
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func main() {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "echo_tool: reading stdin: %v\n", err)
		os.Exit(1)
	}

	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			fmt.Fprintf(os.Stderr, "echo_tool: invalid JSON: %v\n", err)
			os.Exit(1)
		}
	}

	if fail, _ := args["fail"].(bool); fail {
		fmt.Fprintln(os.Stderr, "echo_tool: failing on request")
		os.Exit(2)
	}

	out, _ := json.Marshal(map[string]any{"echo": args})
	fmt.Println(string(out))
}
