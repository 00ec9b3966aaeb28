// Package remembercmder provides the remember command, which stores a fact
// in long-term memory by hand.
package remembercmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/memory"
)

type rememberCommander struct {
	storage    cmdutil.StorageFlagValues
	factType   string
	domain     string
	confidence float64
}

const rememberLongDesc string = `Store a fact in long-term memory.

The fact is embedded and written with no source turns. It is recalled by
later conversations exactly like facts extracted during compaction.

Examples:
  engram remember "user is allergic to peanuts"
  engram remember --type user_preference --domain travel "user prefers aisle seats"`

const rememberShortDesc string = "Store a fact in long-term memory"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <fact>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, cfg, strings.Join(args, " "))
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().StringVar(&cmder.factType, "type", extract.TypeUserPreference, "Fact type (action, tool_call, result, user_preference)")
	cmd.Flags().StringVar(&cmder.domain, "domain", "", "Topic tag (default: detected from the fact text)")
	cmd.Flags().Float64Var(&cmder.confidence, "confidence", 1.0, "Confidence between 0 and 1")

	return cmd
}

func (c *rememberCommander) run(cmd *cobra.Command, cfg *config.Config, text string) error {
	ctx := cmd.Context()
	log := cmdutil.NewLogger(cmd)

	domain := memory.ParseDomain(c.domain)
	if domain == memory.DomainNone {
		domain, _ = memory.Classify(text)
	}

	rt, err := bootstrap.OpenMemory(ctx, cfg, cmdutil.ConfigDir(cmd), log)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.Store.WriteFact(ctx, memory.FactInput{
		Text:       text,
		Type:       strings.ToLower(strings.TrimSpace(c.factType)),
		Domain:     domain.String(),
		Confidence: c.confidence,
	})
	if err != nil {
		return fmt.Errorf("storing fact: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %s Remembered %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(text),
		cliui.DimStyle.Render(fmt.Sprintf("#%d", id)),
	)
	return nil
}
