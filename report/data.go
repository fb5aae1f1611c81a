package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"hebench/bench"
	"hebench/utils"
)

// ErrNoData is returned when no tool folder of a batch holds a matching CSV.
var ErrNoData = errors.New("no data available")

// DuplicateTableError reports a tool folder with more than one CSV for the
// same benchmark. Every tool configuration needs its own folder.
type DuplicateTableError struct {
	Filter string
	Folder string
	Keys   []string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("more than one CSV file for '%s' found in %s (%s): create a separate folder for each tool configuration, e.g., SEAL-BFV, SEAL-CKKS",
		e.Filter, e.Folder, strings.Join(e.Keys, ", "))
}

// LabelsData holds one table per tool of a batch, in listing order.
type LabelsData struct {
	Root   string
	Labels []string
	Tables []*bench.Table
}

// Len returns the number of tools.
func (d *LabelsData) Len() int { return len(d.Labels) }

// Table returns the table of label.
func (d *LabelsData) Table(label string) (*bench.Table, bool) {
	for i, l := range d.Labels {
		if l == label {
			return d.Tables[i], true
		}
	}
	return nil, false
}

// Add appends a tool table.
func (d *LabelsData) Add(label string, t *bench.Table) {
	d.Labels = append(d.Labels, label)
	d.Tables = append(d.Tables, t)
}

// GetLabelsData loads the CSV matching filter from every tool folder of the
// batch root. An empty root selects the most recent batch. Folders without a
// matching CSV are skipped (the plot/ folder, tools that did not run).
func GetLabelsData(ctx context.Context, s Store, filter, root string, stderr io.Writer) (*LabelsData, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	if root == "" {
		var err error
		if root, err = MostRecentFolder(ctx, s); err != nil {
			return nil, err
		}
	} else if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	folders, err := s.ListFolders(ctx, root)
	if err != nil {
		return nil, err
	}
	data := &LabelsData{Root: root}
	for _, folder := range folders {
		keys, err := s.ListFiles(ctx, folder)
		if err != nil {
			return nil, err
		}
		var matches []string
		for _, k := range keys {
			if strings.Contains(k, filter) && strings.Contains(k, ".csv") {
				matches = append(matches, k)
			}
		}
		switch {
		case len(matches) == 0:
			continue
		case len(matches) > 1:
			return nil, &DuplicateTableError{Filter: filter, Folder: folder, Keys: matches}
		}

		table, err := readTable(ctx, s, matches[0])
		if err != nil {
			return nil, err
		}
		label := strings.TrimSuffix(strings.TrimPrefix(folder, root), "/")
		data.Add(label, table)
	}

	if data.Len() == 0 {
		fmt.Fprintf(stderr, "ERROR: Plotting %s failed because no data is available!\n", filter)
		return nil, ErrNoData
	}
	return data, nil
}

func readTable(ctx context.Context, s Store, key string) (*bench.Table, error) {
	r, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	t, err := bench.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return t, nil
}

// Order keeps the tools listed in displayOrder, in that order. Tools missing
// from the batch are logged and skipped; tools not listed are dropped.
func Order(d *LabelsData, displayOrder []string) *LabelsData {
	out := &LabelsData{Root: d.Root}
	for _, key := range displayOrder {
		t, ok := d.Table(key)
		if !ok {
			utils.Logf("Key %s not found in labels. Skipping it.", key)
			continue
		}
		out.Add(key, t)
	}
	return out
}
