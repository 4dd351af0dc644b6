package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/policy"
)

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy document tools",
	}
	cmd.AddCommand(newPolicyValidateCmd())
	return cmd
}

func newPolicyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse, validate and compile a policy file",
		Long: `Checks a policy file without starting the server or opening storage.
Exits non-zero when the document is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := policy.LoadFromFile(args[0])
			if err != nil {
				return err
			}
			if _, err := ability.Compile(doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy %q valid: %d subjects, %d roles, %d bindings\n",
				doc.Metadata.Name, len(doc.Subjects), len(doc.Roles), len(doc.Bindings))
			return nil
		},
	}
}
