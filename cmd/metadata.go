package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/censusdis/internal/varsource"
)

var (
	metaDataset string
	metaYear    int
	metaGroup   string
	metaOutput  string
)

// writeStructured prints v as json or yaml. It reports false for table
// output so the caller can render its own.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch metaOutput {
	case "", "table":
		return false, nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, eris.Wrap(err, "encode yaml")
		}
		return true, eris.Wrap(enc.Close(), "encode yaml")
	default:
		return true, eris.Errorf("unknown output %q, want table, json or yaml", metaOutput)
	}
}

func requireDataset() error {
	if err := requireFlag("dataset", metaDataset); err != nil {
		return err
	}
	if metaYear <= 0 {
		return eris.New("--year is required")
	}
	return nil
}

var variablesCmd = &cobra.Command{
	Use:   "variables [name...]",
	Short: "Show variable metadata by name or by group",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		if len(args) == 0 && metaGroup == "" {
			return eris.New("pass variable names or --group")
		}
		ctx := cmd.Context()
		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		src := env.Downloader.Variables()

		var vars []varsource.Variable
		if metaGroup != "" {
			g, err := src.GetGroup(ctx, metaDataset, metaYear, metaGroup)
			if err != nil {
				return err
			}
			for _, v := range g.Variables {
				vars = append(vars, v)
			}
			slices.SortFunc(vars, func(a, b varsource.Variable) int { return strings.Compare(a.Name, b.Name) })
		}
		for _, name := range args {
			v, err := src.Get(ctx, metaDataset, metaYear, name)
			if err != nil {
				return err
			}
			vars = append(vars, *v)
		}

		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, vars); done {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tLABEL\tCONCEPT")
		for _, v := range vars {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.PredicateType, v.Label, v.Concept)
		}
		return tw.Flush()
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the variable groups of a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		gl, err := env.Downloader.Variables().GetAllGroups(ctx, metaDataset, metaYear)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, gl.Groups); done {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "GROUP\tDESCRIPTION")
		for _, g := range gl.Groups {
			fmt.Fprintf(tw, "%s\t%s\n", g.Name, g.Description)
		}
		return tw.Flush()
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets available in a year, or in every year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cat, err := env.Downloader.Variables().GetDatasets(ctx, metaYear)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, cat.Datasets); done {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "YEAR\tDATASET\tTITLE")
		for _, d := range cat.Datasets {
			year := "-"
			if d.Vintage > 0 {
				year = fmt.Sprint(d.Vintage)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", year, strings.Join(d.Path, "/"), d.Title)
		}
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "%s datasets\n", count(len(cat.Datasets)))
		return tw.Flush()
	},
}

var geographiesCmd = &cobra.Command{
	Use:   "geographies",
	Short: "List the geography hierarchies a dataset supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireDataset(); err != nil {
			return err
		}
		ctx := cmd.Context()
		env, err := initCensus(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Downloader.Geography().Entries(ctx, metaDataset, metaYear)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if done, err := writeStructured(out, entries); done {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LEVEL\tKEY\tHIERARCHY\tWILDCARD")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.GeoLevel, e.Key, strings.Join(e.Path, " > "), strings.Join(e.Wildcard, ","))
		}
		return tw.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{variablesCmd, groupsCmd, datasetsCmd, geographiesCmd} {
		c.Flags().StringVarP(&metaDataset, "dataset", "d", "", "dataset path, e.g. acs/acs5")
		c.Flags().IntVarP(&metaYear, "year", "y", 0, "vintage year")
		c.Flags().StringVarP(&metaOutput, "output", "o", "table", "output: table, json or yaml")
		rootCmd.AddCommand(c)
	}
	variablesCmd.Flags().StringVar(&metaGroup, "group", "", "list every variable in this group")
}
