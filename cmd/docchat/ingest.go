package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oapi-codegen/runtime/types"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Index a PDF and print the new session id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			var file types.File
			file.InitFromBytes(data, filepath.Base(path))

			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.ingest.Ingest(cmd.Context(), &file)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			if asJSON {
				out, err := json.MarshalIndent(map[string]any{
					"session_id": res.SessionID,
					"file_path":  res.FilePath,
					"pages":      res.Pages,
					"chunks":     res.Chunks,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				cmd.Println(string(out))
				return nil
			}
			cmd.Printf("session_id: %s\npages: %d\nchunks: %d\n", res.SessionID, res.Pages, res.Chunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the result as JSON")
	return cmd
}
