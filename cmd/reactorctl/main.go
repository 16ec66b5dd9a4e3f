// Command reactorctl is a debug CLI over a running subject graph: dump a
// subject's current SubjectUpdate tree as JSON, or watch its change
// stream. Grounded on hk9890-perles's cobra-based command tree (the only
// example repo in the pack built as a CLI) — see SPEC_FULL.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bittoy/reactor/engine"
	"github.com/bittoy/reactor/example/car"
	"github.com/bittoy/reactor/types"
)

func main() {
	root := &cobra.Command{
		Use:   "reactorctl",
		Short: "Inspect and exercise a reactor subject graph",
	}

	root.AddCommand(newDumpCommand())
	root.AddCommand(newWatchCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Build the demo car subject and print its complete SubjectUpdate as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := car.New()
			if err != nil {
				return err
			}
			update, err := engine.BuildUpdate(c, nil)
			if err != nil {
				return err
			}
			data, err := engine.EncodeUpdate(update)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	var pressure float64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build the demo car subject, set Tires[0]'s pressure, and print every change it triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, graph, err := car.New()
			if err != nil {
				return err
			}

			unsubscribe := graph.Changes.Subscribe(func(change types.PropertyChange) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: %v -> %v\n",
					types.TypeTag(change.Subject), change.Property, change.OldValue, change.NewValue)
			})
			defer unsubscribe()

			tires, ok := c.Properties()["Tires"].Get(c).([]*car.Tire)
			if !ok || len(tires) == 0 {
				return fmt.Errorf("reactorctl: demo car has no tires")
			}
			return graph.Context.Write(tires[0], "Pressure", pressure)
		},
	}
	cmd.Flags().Float64Var(&pressure, "pressure", 30.0, "new pressure for Tires[0]")
	return cmd
}
