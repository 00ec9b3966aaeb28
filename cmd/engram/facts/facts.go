// Package factscmder provides the facts command, which lists every fact in
// long-term memory.
package factscmder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage"
)

type factsCommander struct {
	storage cmdutil.StorageFlagValues
	domain  string
	asJSON  bool
}

const factsLongDesc string = `List the facts stored in long-term memory, oldest first.

Examples:
  engram facts
  engram facts --domain travel
  engram facts --json`

const factsShortDesc string = "List stored facts"

func NewFactsCmd() *cobra.Command {
	cmder := &factsCommander{}

	cmd := &cobra.Command{
		Use:   "facts",
		Short: factsShortDesc,
		Long:  factsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, cfg)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().StringVar(&cmder.domain, "domain", "", "Only list facts tagged with this domain")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print facts as JSON")

	return cmd
}

func (c *factsCommander) run(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	rt, err := bootstrap.OpenMemory(ctx, cfg, cmdutil.ConfigDir(cmd), cmdutil.NewLogger(cmd))
	if err != nil {
		return err
	}
	defer rt.Close()

	facts, err := rt.Store.ListFacts(ctx)
	if err != nil {
		return err
	}
	facts = filterDomain(facts, memory.ParseDomain(c.domain))

	out := cmd.OutOrStdout()
	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(facts)
	}

	if len(facts) == 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No facts stored."))
		return nil
	}

	fmt.Fprintln(out)
	for _, f := range facts {
		tag := f.Type
		if f.Domain != "" {
			tag += "/" + f.Domain
		}
		fmt.Fprintf(out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("#%-4d", f.ID)),
			f.Text,
			cliui.DomainStyle.Render(tag),
		)
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d facts", len(facts))))
	return nil
}

func filterDomain(facts []storage.Fact, d memory.Domain) []storage.Fact {
	if d == memory.DomainNone {
		return facts
	}
	kept := make([]storage.Fact, 0, len(facts))
	for _, f := range facts {
		if d.Matches(f.Domain) {
			kept = append(kept, f)
		}
	}
	return kept
}
