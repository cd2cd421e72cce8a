package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/validation"
)

func newEdgesCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "edges",
		Short:        "Show observed source/destination edges in a namespace",
		Long:         `edges lists the source to destination pairs the control plane has observed in a namespace, with the mTLS identities of both sides where known.`,
		Args:         cobra.NoArgs,
		RunE:         runEdges,
		SilenceUsage: true,
	}
}

func runEdges(cmd *cobra.Command, args []string) error {
	if err := validation.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("invalid namespace: %w", err)
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	cleanup := setupRuntime()
	defer cleanup()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	source, err := dataSourceFactory(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}

	edges, err := source.Edges(ctx, namespace)
	if err != nil {
		return fmt.Errorf("failed to fetch edges: %w", err)
	}
	return printResult(render.FormatEdgeTable(edges), edges)
}
