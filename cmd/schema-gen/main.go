// Command schema-gen emits JSON Schema for the wire types exposed by
// the admin API, so external callers can validate enqueue payloads and
// generate typed clients without depending on the Go module.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/oxenqueue/oxenqueue/internal/handlers"
	"github.com/oxenqueue/oxenqueue/internal/queue"
)

func main() {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}

	schemas := map[string]any{
		"Job":                reflector.Reflect(&queue.Job{}),
		"EnqueueRequest":     reflector.Reflect(&handlers.EnqueueRequest{}),
		"EnqueueResponse":    reflector.Reflect(&handlers.EnqueueResponse{}),
		"ListJobsResponse":   reflector.Reflect(&handlers.ListJobsResponse{}),
		"DispatcherSnapshot": reflector.Reflect(&queue.DispatcherSnapshot{}),
	}

	for name, schema := range schemas {
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to marshal schema for %s: %v\n", name, err)
			os.Exit(1)
		}
		path := fmt.Sprintf("schemas/%s.json", name)
		if err := os.MkdirAll("schemas", 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create schemas dir: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}
}
