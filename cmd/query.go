package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gavram/ckan-search/internal/application"
	"github.com/gavram/ckan-search/internal/service"
)

var queryFlags struct {
	q       string
	fq      []string
	sort    string
	start   int
	rows    int
	facet   bool
	decodeT bool
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one dataset search and print the JSON result",
	RunE:  runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVarP(&queryFlags.q, "q", "q", "", "free-text query")
	f.StringArrayVar(&queryFlags.fq, "fq", nil, "exact filter field:value (repeatable)")
	f.StringVar(&queryFlags.sort, "sort", "", `sort clause, e.g. "metadata_modified desc"`)
	f.IntVar(&queryFlags.start, "start", -1, "offset of the first result")
	f.IntVar(&queryFlags.rows, "rows", -1, "page size")
	f.BoolVar(&queryFlags.facet, "facet", false, "request facets")
	f.BoolVar(&queryFlags.decodeT, "decode-dates", false, "decode timestamp strings in results")
}

func runQuery(cmd *cobra.Command, args []string) error {
	req := service.Request{
		Q:           queryFlags.q,
		Sort:        queryFlags.sort,
		Facet:       queryFlags.facet,
		DecodeDates: queryFlags.decodeT,
	}
	for _, fq := range queryFlags.fq {
		field, value, ok := strings.Cut(fq, ":")
		if !ok {
			return fmt.Errorf("--fq must be field:value, got %q", fq)
		}
		req.Filters = append(req.Filters, service.Filter{Field: field, Value: value})
	}
	if queryFlags.start >= 0 {
		req.Start = &queryFlags.start
	}
	if queryFlags.rows >= 0 {
		req.Rows = &queryFlags.rows
	}

	svcs, err := application.NewServices(cfg, log)
	if err != nil {
		return err
	}
	res, err := svcs.Query.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
