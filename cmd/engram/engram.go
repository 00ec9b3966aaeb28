// Package engramcmder is the root of the engram CLI.
package engramcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/engram/cmd/engram/chat"
	clearcmder "github.com/papercomputeco/engram/cmd/engram/clear"
	configcmder "github.com/papercomputeco/engram/cmd/engram/config"
	factscmder "github.com/papercomputeco/engram/cmd/engram/facts"
	initcmder "github.com/papercomputeco/engram/cmd/engram/init"
	recallcmder "github.com/papercomputeco/engram/cmd/engram/recall"
	remembercmder "github.com/papercomputeco/engram/cmd/engram/remember"
	servecmder "github.com/papercomputeco/engram/cmd/engram/serve"
	versioncmder "github.com/papercomputeco/engram/cmd/engram/version"
)

const engramLongDesc string = `Engram is a chat agent with long-term memory.

Conversations are compacted into a memory store as they grow: older turns
are embedded and stored, facts are distilled from them, and both are
recalled into later prompts by semantic similarity.

  engram chat        Talk to the agent in the terminal
  engram serve       Run the HTTP API, chat endpoint and MCP server
  engram recall      Search long-term memory
  engram remember    Store a fact by hand
  engram facts       List stored facts`

const engramShortDesc string = "Engram - memory for chat agents"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "engram",
		Short:         engramShortDesc,
		Long:          engramLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .engram/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(factscmder.NewFactsCmd())
	cmd.AddCommand(clearcmder.NewClearCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
