package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command holding the client command groups.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "bifrost",
		Short: "Bifrost client commands",
	}
	root.AddCommand(NewNodeCommand())
	root.AddCommand(NewLogCommand())
	return root
}
