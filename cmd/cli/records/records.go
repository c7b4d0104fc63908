package records

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/myrjola/keeper/cmd/cli/appenv"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "records",
	Title: "Scenarios and investigators",
}

var Scenarios = &cobra.Command{
	Use:     "scenarios",
	GroupID: "records",
	Short:   "List scenarios",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			scenarios, err := env.Scenarios.List(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:mnd // column layout
			_, _ = fmt.Fprintln(w, "ID\tNAME\tTAGS\tDESCRIPTION")
			for _, s := range scenarios {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.Tags, ", "), s.ShortDescription)
			}
			return w.Flush() //nolint:wrapcheck // terminal output
		})
	},
}

var Investigators = &cobra.Command{
	Use:     "investigators",
	GroupID: "records",
	Short:   "List investigators",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return appenv.Run(cmd, func(env *appenv.Env) error {
			investigators, err := env.Investigators.List(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // repository errors are annotated
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:mnd // column layout
			_, _ = fmt.Fprintln(w, "ID\tNAME\tOCCUPATION\tLANGUAGE")
			for _, inv := range investigators {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inv.ID, inv.Name, inv.Occupation, inv.Language)
			}
			return w.Flush() //nolint:wrapcheck // terminal output
		})
	},
}
