package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/istore/internal/entity"
	"github.com/roach88/istore/internal/storage"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	All bool
}

// ConvertResult lists the entities written to the destination.
type ConvertResult struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	UUIDs       []string `json:"uuids"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Copy entities from one storage to another",
		Long: `Load the entity addressed by src and save it to dst.

With --all every entity of the source storage is copied. The destination
mode defaults to storage.default_mode from the configuration.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			store, err := rootOpts.newStore()
			if err != nil {
				return err
			}

			src, dst := args[0], args[1]
			var uuids []string
			if opts.All {
				uuids, err = convertAll(cmd.Context(), rootOpts, store, src, dst)
			} else {
				uuids, err = convertOne(cmd.Context(), rootOpts, store, src, dst)
			}
			if err != nil {
				return out.Fail(ExitFailure, "conversion failed", err)
			}
			out.VerboseLog("Wrote %d entities to %s", len(uuids), dst)

			if out.Format == "json" {
				return out.Success(ConvertResult{Source: src, Destination: dst, UUIDs: uuids})
			}
			return out.Success(fmt.Sprintf("✓ Converted %s -> %s (%s)", src, dst, strings.Join(uuids, ", ")))
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "copy every entity of the source storage")

	return cmd
}

func convertOne(ctx context.Context, rootOpts *RootOptions, store *entity.Store, src, dst string) ([]string, error) {
	inst, err := store.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	defer inst.Release()

	target, err := openDestination(ctx, rootOpts, store, dst)
	if err != nil {
		return nil, err
	}
	if err := saveTo(ctx, target, inst); err != nil {
		target.Close()
		return nil, err
	}
	return []string{inst.UUID()}, target.Close()
}

func convertAll(ctx context.Context, rootOpts *RootOptions, store *entity.Store, src, dst string) ([]string, error) {
	u, err := storage.ParseURL(src)
	if err != nil {
		return nil, err
	}
	srcOpts, err := storage.ParseOptions(u.Options)
	if err != nil {
		return nil, err
	}
	source, err := store.OpenStorage(ctx, u.Driver, u.Location, srcOpts.WithDefaultMode(storage.ModeRead).String())
	if err != nil {
		return nil, err
	}
	defer source.Close()

	ids, err := source.IDs(ctx)
	if err != nil {
		return nil, err
	}
	insts := make([]*entity.Instance, 0, len(ids))
	defer func() {
		for _, inst := range insts {
			inst.Release()
		}
	}()
	for _, id := range ids {
		inst, err := source.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}

	target, err := openDestination(ctx, rootOpts, store, dst)
	if err != nil {
		return nil, err
	}
	uuids := make([]string, 0, len(insts))
	saved := make(map[string]bool, len(insts))
	var save func(inst *entity.Instance) error
	save = func(inst *entity.Instance) error {
		if saved[inst.UUID()] {
			return nil
		}
		if c, ok := inst.Collection(); ok {
			for _, label := range c.Labels() {
				member, err := c.Member(label)
				if err != nil {
					return err
				}
				if err := save(member); err != nil {
					return err
				}
			}
		}
		if err := target.Save(ctx, inst); err != nil {
			return err
		}
		saved[inst.UUID()] = true
		uuids = append(uuids, inst.UUID())
		return nil
	}
	for _, inst := range insts {
		if err := save(inst); err != nil {
			target.Close()
			return nil, err
		}
	}
	return uuids, target.Close()
}

// openDestination opens dst for writing, applying the configured default
// mode when the URL names none.
func openDestination(ctx context.Context, rootOpts *RootOptions, store *entity.Store, dst string) (*entity.Storage, error) {
	u, err := storage.ParseURL(dst)
	if err != nil {
		return nil, err
	}
	opts, err := storage.ParseOptions(u.Options)
	if err != nil {
		return nil, err
	}
	mode := storage.Mode(rootOpts.Config().Storage.DefaultMode)
	return store.OpenStorage(ctx, u.Driver, u.Location, opts.WithDefaultMode(mode).String())
}

func saveTo(ctx context.Context, target *entity.Storage, inst *entity.Instance) error {
	if c, ok := inst.Collection(); ok {
		return c.SaveTo(ctx, target)
	}
	return target.Save(ctx, inst)
}
