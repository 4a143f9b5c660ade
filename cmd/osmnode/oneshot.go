package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/NERVsystems/osmnode/pkg/osm"
)

// runOneShot answers a single -node or -parse request on out
func runOneShot(ctx context.Context, cfg *config, svc *osm.Service, stdin io.Reader, out io.Writer) error {
	var (
		node *osm.Node
		err  error
	)

	if cfg.parseFile != "" {
		doc, readErr := readDocument(cfg.parseFile, stdin)
		if readErr != nil {
			return readErr
		}
		node, err = svc.ParseNodeFromXML(nil, doc)
	} else {
		node, err = svc.FetchNode(ctx, cfg.nodeID)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(node)
}

func readDocument(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
