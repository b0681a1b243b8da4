package main

import (
	"fraud-gate/pkg/features"
	"fraud-gate/pkg/transaction"

	"github.com/spf13/cobra"
)

func (a *app) encodeCmd() *cobra.Command {
	var f *inputFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the feature vector for one transaction",
		Long:  "Validate and encode a transaction without loading a model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			if err := transaction.Validate(in); err != nil {
				return err
			}

			v := features.Encode(in)
			out := cmd.OutOrStdout()
			if f.asJSON {
				return printJSON(out, v.Named())
			}
			return printVector(out, v)
		},
	}

	f = addInputFlags(cmd)
	return cmd
}
