package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/istore/internal/ir"
)

// PropertyValue is the JSON payload of show with a property argument.
type PropertyValue struct {
	UUID     string          `json:"uuid"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	Arrays bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{}

	cmd := &cobra.Command{
		Use:   "show <url> [property]",
		Short: "Print an entity document or one property value",
		Long: `Load the entity addressed by url and print its document.

With a property name only that property is printed, as JSON text.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			store, err := rootOpts.newStore()
			if err != nil {
				return err
			}

			inst, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return out.Fail(ExitFailure, "cannot load entity", err)
			}
			defer inst.Release()

			if len(args) == 2 {
				text, err := inst.ToString(args[1])
				if err != nil {
					return out.Fail(ExitFailure, "cannot read property", err)
				}
				if out.Format == "json" {
					return out.Success(PropertyValue{
						UUID:     inst.UUID(),
						Property: args[1],
						Value:    json.RawMessage(text),
					})
				}
				return out.Success(text)
			}

			doc, err := inst.Document(opts.Arrays)
			if err != nil {
				return out.Fail(ExitFailure, "cannot encode entity", err)
			}
			if out.Format == "json" {
				return out.Success(doc)
			}
			data, err := ir.MarshalIndent(doc, "", "  ")
			if err != nil {
				return out.Fail(ExitFailure, "cannot encode entity", err)
			}
			return out.Success(string(data))
		},
	}

	cmd.Flags().BoolVar(&opts.Arrays, "arrays", false, "print metadata dimensions and properties as lists")

	return cmd
}
