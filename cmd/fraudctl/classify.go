package main

import (
	"fmt"

	"fraud-gate/pkg/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) classifyCmd() *cobra.Command {
	var f *inputFlags

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one transaction",
		Long: `Encode a transaction, run the classifier and print the decision with its
confidence and the exact vector the classifier saw.

Examples:
  fraudctl classify -t TRANSFER -a 181 --oldbalance-org 181
  fraudctl classify -t PAYMENT -a 9839.64 --oldbalance-org 170136 --newbalance-orig 160296.36 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}

			collector, err := a.collector()
			if err != nil {
				return err
			}
			d, err := a.detector(collector)
			if err != nil {
				return err
			}
			defer func() {
				if err := d.Close(); err != nil {
					a.logger.Debug("memo close failed", zap.Error(err))
				}
			}()

			res, err := d.Evaluate(cmd.Context(), in)
			if err != nil {
				if model.IsUnavailable(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "no decision available: the model is not loaded")
				}
				return err
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "Decision:    %s\n", res.Decision.Label)
			fmt.Fprintf(out, "Confidence:  %.2f%%\n", res.Decision.Confidence())
			fmt.Fprintf(out, "P(fraud):    %.6f\n", res.Decision.Probability)
			fmt.Fprintf(out, "Model:       %s\n", res.ModelDigest)
			fmt.Fprintln(out, "Vector:")
			return printVector(out, res.Vector)
		},
	}

	f = addInputFlags(cmd)
	return cmd
}
