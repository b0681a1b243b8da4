package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fraud-gate/pkg/features"
	"fraud-gate/pkg/transaction"

	"github.com/spf13/cobra"
)

// inputFlags holds one transaction given on the command line.
type inputFlags struct {
	kind           string
	step           int
	amount         float64
	oldBalanceOrg  float64
	newBalanceOrig float64
	oldBalanceDest float64
	newBalanceDest float64
	flagged        bool
	asJSON         bool
}

func addInputFlags(cmd *cobra.Command) *inputFlags {
	f := &inputFlags{}
	fs := cmd.Flags()
	fs.StringVarP(&f.kind, "type", "t", "", "transaction type: TRANSFER, CASH_OUT, PAYMENT or DEBIT")
	fs.IntVar(&f.step, "step", 1, "hour of the simulation (1-743)")
	fs.Float64VarP(&f.amount, "amount", "a", 0, "transaction amount")
	fs.Float64Var(&f.oldBalanceOrg, "oldbalance-org", 0, "origin balance before the transaction")
	fs.Float64Var(&f.newBalanceOrig, "newbalance-orig", 0, "origin balance after the transaction")
	fs.Float64Var(&f.oldBalanceDest, "oldbalance-dest", 0, "destination balance before the transaction")
	fs.Float64Var(&f.newBalanceDest, "newbalance-dest", 0, "destination balance after the transaction")
	fs.BoolVar(&f.flagged, "flagged", false, "upstream system pre-flagged the transaction")
	fs.BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("type")
	return f
}

func (f *inputFlags) input() (transaction.Input, error) {
	t, err := transaction.ParseType(f.kind)
	if err != nil {
		return transaction.Input{}, err
	}
	return transaction.Input{
		Type:             t,
		Step:             f.step,
		Amount:           f.amount,
		OldBalanceOrigin: f.oldBalanceOrg,
		NewBalanceOrigin: f.newBalanceOrig,
		OldBalanceDest:   f.oldBalanceDest,
		NewBalanceDest:   f.newBalanceDest,
		IsFlaggedFraud:   transaction.Flag(f.flagged),
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVector(w io.Writer, v features.Vector) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range v.Named() {
		fmt.Fprintf(tw, "  %s\t%g\n", f.Name, f.Value)
	}
	return tw.Flush()
}
