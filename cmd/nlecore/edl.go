package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrjoshuak/nlecore/internal/command"
	"github.com/mrjoshuak/nlecore/internal/edl"
	"github.com/mrjoshuak/nlecore/internal/model"
)

var edlCmd = &cobra.Command{
	Use:   "edl",
	Short: "Import/export CMX 3600 Edit Decision Lists",
}

var (
	edlImportProjectID string
	edlImportSeqName   string
	edlImportFPSNum    uint32
	edlImportFPSDen    uint32
)

var edlImportCmd = &cobra.Command{
	Use:   "import <file.edl>",
	Short: "Decode an EDL into a batch of CreateSequence/AddTrack/CreateClip records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		dec := edl.NewDecoder(f)
		res, err := dec.Import(edl.ImportOptions{
			ProjectID:    edlImportProjectID,
			SequenceName: edlImportSeqName,
			FPSNum:       edlImportFPSNum,
			FPSDen:       edlImportFPSDen,
		})
		if err != nil {
			return err
		}
		if res.DroppedTransitions > 0 {
			fmt.Fprintf(os.Stderr, "edl import: collapsed %d transition(s) to straight cuts\n", res.DroppedTransitions)
		}
		if res.GapCount > 0 {
			fmt.Fprintf(os.Stderr, "edl import: %d gap(s) between events, left as unused track space\n", res.GapCount)
		}

		batch := command.Record{
			Name: "BatchCommand",
			ProjectID: edlImportProjectID,
			Parameters: command.Params{
				"commands": entriesToParams(res.Commands),
			},
		}
		out, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func entriesToParams(entries []edl.BatchEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{"name": e.Name, "parameters": e.Parameters}
		if e.Ref != "" {
			item["_ref"] = e.Ref
			item["_capture_field"] = e.CaptureField
		}
		out = append(out, item)
	}
	return out
}

var (
	edlExportSequenceID string
	edlExportOutput     string
)

var edlExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Encode a sequence's video/audio tracks as a CMX 3600 EDL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if edlExportSequenceID == "" {
			return fmt.Errorf("edl export: --sequence is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		seq, err := model.LoadSequence(a.gateway, edlExportSequenceID)
		if err != nil {
			return err
		}

		w := os.Stdout
		if edlExportOutput != "" {
			f, err := os.Create(edlExportOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			enc := edl.NewEncoder(f)
			return enc.Encode(a.gateway, seq)
		}
		enc := edl.NewEncoder(w)
		return enc.Encode(a.gateway, seq)
	},
}

func init() {
	edlImportCmd.Flags().StringVar(&edlImportProjectID, "project", "", "project id to attach the imported sequence to")
	edlImportCmd.Flags().StringVar(&edlImportSeqName, "name", "", "name for the imported sequence")
	edlImportCmd.Flags().Uint32Var(&edlImportFPSNum, "fps-num", 0, "frame rate numerator (default: 24)")
	edlImportCmd.Flags().Uint32Var(&edlImportFPSDen, "fps-den", 1, "frame rate denominator")

	edlExportCmd.Flags().StringVar(&edlExportSequenceID, "sequence", "", "sequence id to export")
	edlExportCmd.Flags().StringVar(&edlExportOutput, "out", "", "output file (default: stdout)")

	edlCmd.AddCommand(edlImportCmd)
	edlCmd.AddCommand(edlExportCmd)
}
