package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var urlQuery queryFlags

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the Census API URL a download would query",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := urlQuery.request()
		if err != nil {
			return err
		}
		env, err := initCensus(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		bindings := make(map[string]string, len(req.Geography))
		for k, vals := range req.Geography {
			c, err := env.Downloader.Geography().ComponentFromSnake(ctx, req.Dataset, req.Year, k)
			if err != nil {
				return err
			}
			bindings[c] = strings.Join(vals, ",")
		}

		u, params, bp, err := env.Downloader.TableURL(ctx, req.Dataset, req.Year, req.Variables, cfg.Census.APIKey, bindings)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u+"?"+params.Encode())
		fmt.Fprintln(cmd.ErrOrStderr(), "geography:", bp.Spec.String())
		return nil
	},
}

func init() {
	urlQuery.register(urlCmd)
	rootCmd.AddCommand(urlCmd)
}
