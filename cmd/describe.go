package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
	"github.com/KaramelBytes/autolysis-cli/internal/utils"
)

var (
	descDelimiter  string
	descSampleRows int
	descOutlierThr float64
	descNoCorr     bool
	descOutput     string
)

var describeCmd = &cobra.Command{
	Use:   "describe <csv_file>",
	Short: "Print the dataset digest the model would see, without calling it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := datasetOptions(cfg)
		if descSampleRows > 0 {
			opt.SampleRows = descSampleRows
		}
		if descOutlierThr > 0 {
			opt.OutlierThreshold = descOutlierThr
		}
		opt.Correlations = !descNoCorr
		d, err := parseDelimiter(descDelimiter)
		if err != nil {
			return err
		}
		opt.Delimiter = d

		sum, err := dataset.Load(args[0], opt)
		if err != nil {
			return err
		}
		md := sum.Markdown()
		if descOutput != "" {
			if err := utils.SafeWriteFile(descOutput, []byte(md)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Digest written to %s\n", descOutput)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&descDelimiter, "delimiter", "", "field delimiter: ',', ';', '|' or 'tab' (default: sniffed from the extension)")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 0, "number of sample rows to include")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", 0, "robust |z| cut-off for outliers")
	describeCmd.Flags().BoolVar(&descNoCorr, "no-corr", false, "skip correlations between numeric columns")
	describeCmd.Flags().StringVar(&descOutput, "output", "", "write the digest to a file instead of stdout")
}
