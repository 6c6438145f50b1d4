package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/istore/internal/ident"
)

// UUIDResult pairs an id with the uuid it resolves to.
type UUIDResult struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
}

// NewUUIDCommand creates the uuid command.
func NewUUIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "uuid <id>...",
		Short: "Print the uuid an id resolves to",
		Long: `Resolve each id to a uuid.

A valid uuid is printed in canonical form; any other string, typically a
metadata URI or a label, yields its deterministic name-based uuid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			results := make([]UUIDResult, 0, len(args))
			for _, id := range args {
				u, err := ident.Resolve(id)
				if err != nil {
					return out.Fail(ExitFailure, "cannot resolve id", err)
				}
				results = append(results, UUIDResult{ID: id, UUID: u})
			}

			if out.Format == "json" {
				return out.Success(results)
			}
			var sb strings.Builder
			for i, r := range results {
				if i > 0 {
					sb.WriteByte('\n')
				}
				fmt.Fprintf(&sb, "%s  %s", r.UUID, r.ID)
			}
			return out.Success(sb.String())
		},
	}
}
