// Package main writes the JSON schemas of the save records and the server
// config, for tooling that inspects or edits stored saves.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/savegame"
)

func main() {
	var outPath, kind string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema (stdout when empty)")
	flag.StringVar(&kind, "kind", "document", "schema to emit: document, metadata or config")
	flag.Parse()

	schema, err := buildSchema(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema(kind string) (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{}
	var schema *jsonschema.Schema
	switch kind {
	case "document":
		schema = reflector.Reflect(new(savegame.Document))
		schema.Title = "Resource Rush Game Data"
		schema.Description = "Stored under " + savegame.DataKey("<user>")
	case "metadata":
		schema = reflector.Reflect(new(savegame.Metadata))
		schema.Title = "Resource Rush Save Metadata"
		schema.Description = "Stored under " + savegame.MetaKey("<user>")
	case "config":
		reflector.AllowAdditionalProperties = true
		schema = reflector.Reflect(new(config.Config))
		schema.Title = "Resource Rush Server Config"
	default:
		return nil, fmt.Errorf("unknown schema kind %q", kind)
	}
	return schema, nil
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	return os.Rename(tmpPath, outPath)
}
