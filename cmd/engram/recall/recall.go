// Package recallcmder provides the recall command, which searches long-term
// memory from the terminal.
package recallcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/utils"
)

const previewLen = 100

type recallCommander struct {
	storage cmdutil.StorageFlagValues
	domain  string
	topK    uint
	asJSON  bool
}

const recallLongDesc string = `Search long-term memory for facts and past turns related to a query.

Facts are narrowed to the query's topic (todo, writing, learning, travel),
which is detected from the query unless --domain is given. Past turns are
never filtered.

Examples:
  engram recall "what hotel did I book"
  engram recall --domain travel "seat preference"
  engram recall --json -k 10 "rust course"`

const recallShortDesc string = "Search long-term memory"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
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
	cmd.Flags().StringVar(&cmder.domain, "domain", "", "Topic to narrow facts to (default: detected from the query)")
	cmd.Flags().UintVarP(&cmder.topK, "top-k", "k", 0, "Number of results per list (default: memory.top_k)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print results as JSON")

	return cmd
}

func (c *recallCommander) run(cmd *cobra.Command, cfg *config.Config, query string) error {
	ctx := cmd.Context()
	log := cmdutil.NewLogger(cmd)

	rt, err := bootstrap.OpenMemory(ctx, cfg, cmdutil.ConfigDir(cmd), log)
	if err != nil {
		return err
	}
	defer rt.Close()

	topK := c.topK
	if topK == 0 {
		topK = cfg.Memory.TopK
	}

	comp, err := rt.Composer.Compose(ctx, query, memory.ParseDomain(c.domain), int(topK))
	if err != nil {
		return fmt.Errorf("recalling memories: %w", err)
	}

	out := cmd.OutOrStdout()
	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(comp)
	}

	printComposition(out, comp)
	return nil
}

func printComposition(out io.Writer, comp *memory.Composition) {
	fmt.Fprintln(out)
	if comp.Domain != memory.DomainNone {
		fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Domain:"), cliui.DomainStyle.Render(comp.Domain.String()))
	}

	fmt.Fprintf(out, "  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("Facts (%d)", len(comp.Facts))))
	if len(comp.Facts) == 0 {
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("none"))
	}
	for _, f := range comp.Facts {
		fmt.Fprintf(out, "    %s %s %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%.3f", f.Similarity)),
			f.Text,
			cliui.DimStyle.Render(fmt.Sprintf("#%d", f.ID)),
		)
	}

	fmt.Fprintf(out, "\n  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("Turns (%d)", len(comp.Sources))))
	if len(comp.Sources) == 0 {
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("none"))
	}
	for _, s := range comp.Sources {
		fmt.Fprintf(out, "    %s %s %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%.3f", s.Similarity)),
			cliui.NameStyle.Render(s.Speaker+":"),
			utils.Truncate(s.Content, previewLen),
		)
	}
	fmt.Fprintln(out)
}
