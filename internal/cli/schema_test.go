package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "truststack", Short: "root"}
	AddHelpJSONFlag(root)

	upload := &cobra.Command{Use: "upload <project-id> <item-id> <file>", Short: "Upload evidence", RunE: func(*cobra.Command, []string) error { return nil }}
	upload.Flags().StringP("name", "n", "", "Stored file name")
	upload.Flags().String("server", "", "Server URL")
	_ = upload.MarkFlagRequired("server")

	evidence := &cobra.Command{Use: "evidence", Short: "Evidence files"}
	evidence.AddCommand(upload)
	evidence.AddCommand(&cobra.Command{Use: "secret", Hidden: true})
	root.AddCommand(evidence)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testRoot())

	assert.Equal(t, "truststack", schema.Name)
	require.Len(t, schema.Subcommands, 1)
	evidence := schema.Subcommands[0]
	require.Len(t, evidence.Subcommands, 1, "hidden commands are skipped")

	upload := evidence.Subcommands[0]
	assert.Equal(t, "truststack evidence upload", upload.Path)
	assert.Equal(t, []string{"<project-id>", "<item-id>", "<file>"}, upload.Args)
	require.Len(t, upload.Flags, 2)

	flags := map[string]FlagSchema{}
	for _, f := range upload.Flags {
		flags[f.Name] = f
	}
	assert.Equal(t, "n", flags["name"].Shorthand)
	assert.False(t, flags["name"].Required)
	assert.True(t, flags["server"].Required)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testRoot()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "truststack", decoded.Name)
	assert.Empty(t, decoded.Flags, "help-json is not listed")
}
