package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleRelations is the schema of the profile written by SampleProfile.
const SampleRelations = `item:
  i-id :integer :key
  i-input :string
  i-length :integer

parse:
  parse-id :integer :key
  i-id :integer :key
  readings :integer

result:
  parse-id :integer :key
  result-id :integer
  derivation :string
`

// SampleTables holds the table files written by SampleProfile.
var SampleTables = map[string]string{
	"item":   "1@The dog barks.@3\n10@Kim sleeps\\s home.@10\n",
	"parse":  "100@1@2\n110@10@1\n",
	"result": "100@0@(S dog barks)\n100@1@(S (N dog) (V barks))\n110@0@(S Kim sleeps)\n",
}

// SampleProfile writes a three-table profile (item, parse, result) into a
// fresh temporary directory and returns its path.
func SampleProfile(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, map[string]string{"relations": SampleRelations})
	WriteFiles(t, dir, SampleTables)
	return dir
}

// WriteFiles writes name -> content pairs into dir, creating parents.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}
