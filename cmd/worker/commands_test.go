package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"run"}, {"reclaim"}, {"locks", "cleanup"}, {"fill"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	run, _, _ := root.Find([]string{"run"})
	assert.NotNil(t, run.Flags().Lookup("loop"))
	assert.NotNil(t, run.Flags().Lookup("interval"))

	reclaim, _, _ := root.Find([]string{"reclaim"})
	assert.NotNil(t, reclaim.Flags().Lookup("older-than"))

	cleanup, _, _ := root.Find([]string{"locks", "cleanup"})
	assert.NotNil(t, cleanup.Flags().Lookup("timeout"))
}

func TestFillRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"fill", "--template", "poa-adult"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunFillInputErrors(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "record.json")
	require.NoError(t, os.WriteFile(record, []byte(`{"applicant_first_name":"Jan"}`), 0o644))
	notPDF := filepath.Join(dir, "template.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("not a pdf"), 0o644))

	tests := []struct {
		name string
		opts fillOptions
		want string
	}{
		{"unknown template", fillOptions{template: "passport", record: record, pdf: notPDF, out: filepath.Join(dir, "o.pdf")}, "template"},
		{"missing record", fillOptions{template: "poa-adult", record: filepath.Join(dir, "nope.json"), pdf: notPDF, out: filepath.Join(dir, "o.pdf")}, "read record"},
		{"invalid pdf", fillOptions{template: "poa-adult", record: record, pdf: notPDF, out: filepath.Join(dir, "o.pdf")}, "fillable PDF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runFill(&bytes.Buffer{}, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
