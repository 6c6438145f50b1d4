package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidationResult reports the outcome for one storage URL.
type ValidationResult struct {
	URL   string `json:"url"`
	Valid bool   `json:"valid"`
	UUID  string `json:"uuid,omitempty"`
	Meta  string `json:"meta,omitempty"`
	Class string `json:"class,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <url>...",
		Short: "Check that entities load and conform to their metadata",
		Long: `Load each storage URL into an empty store and report whether the
entity conforms to its schema and metadata.

Metadata not found in the storage itself is looked up on the configured
search paths.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			results := make([]ValidationResult, 0, len(args))
			failed := 0
			for _, url := range args {
				r, err := validateURL(cmd, rootOpts, url)
				if err != nil {
					return err
				}
				if !r.Valid {
					failed++
				}
				results = append(results, r)
			}

			if out.Format == "json" {
				if err := out.Success(results); err != nil {
					return err
				}
			} else {
				var sb strings.Builder
				for _, r := range results {
					if r.Valid {
						fmt.Fprintf(&sb, "✓ %s (%s %s)\n", r.URL, r.Class, r.UUID)
					} else {
						fmt.Fprintf(&sb, "✗ %s: %s\n", r.URL, r.Error)
					}
				}
				if failed == 0 {
					sb.WriteString("✓ All entities valid")
				} else {
					fmt.Fprintf(&sb, "✗ %d of %d entities invalid", failed, len(results))
				}
				if err := out.Success(sb.String()); err != nil {
					return err
				}
			}

			if failed > 0 {
				return NewExitError(ExitFailure, "validation failed")
			}
			return nil
		},
	}
}

func validateURL(cmd *cobra.Command, rootOpts *RootOptions, url string) (ValidationResult, error) {
	store, err := rootOpts.newStore()
	if err != nil {
		return ValidationResult{}, err
	}
	rootOpts.formatter(cmd).VerboseLog("Validating %s", url)

	inst, err := store.Load(cmd.Context(), url)
	if err != nil {
		return ValidationResult{URL: url, Code: errorCode(err), Error: err.Error()}, nil
	}
	defer inst.Release()
	return ValidationResult{
		URL:   url,
		Valid: true,
		UUID:  inst.UUID(),
		Meta:  inst.Meta().URI(),
		Class: inst.Class().String(),
	}, nil
}
