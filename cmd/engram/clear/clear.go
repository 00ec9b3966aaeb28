// Package clearcmder provides the clear command, which erases long-term
// memory.
package clearcmder

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

// ErrNotConfirmed is returned when clear runs without --yes.
var ErrNotConfirmed = errors.New("refusing to clear memory without --yes")

type clearCommander struct {
	storage cmdutil.StorageFlagValues
	yes     bool
}

const clearLongDesc string = `Delete every stored turn and fact from long-term memory.

This cannot be undone. Pass --yes to confirm.

Examples:
  engram clear --yes
  engram clear --yes --storage-driver postgres --postgres-dsn postgres://...`

const clearShortDesc string = "Erase long-term memory"

func NewClearCmd() *cobra.Command {
	cmder := &clearCommander{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Long:  clearLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmder.yes {
				return ErrNotConfirmed
			}
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, cfg)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Confirm deletion")

	return cmd
}

func (c *clearCommander) run(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	rt, err := bootstrap.OpenMemory(ctx, cfg, cmdutil.ConfigDir(cmd), cmdutil.NewLogger(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	return cliui.Step(cmd.OutOrStdout(), "Clearing memory", func() error {
		return rt.Store.Clear(ctx)
	})
}
