package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chrissnell/statgis/pkg/responseformat"
)

func printResult(v any) error {
	return writeResult(os.Stdout, outFormat, v)
}

func writeResult(w io.Writer, format string, v any) error {
	switch format {
	case responseformat.FormatCSV:
		t, ok := v.(responseformat.Tabular)
		if !ok {
			return fmt.Errorf("this result has no CSV form; use --format json")
		}
		body, err := t.CSV()
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	case responseformat.FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported output format %q", format)
}
