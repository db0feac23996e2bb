package splitter_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hass-tools/freely-split/internal/guide"
	"github.com/hass-tools/freely-split/internal/lineup"
	"github.com/hass-tools/freely-split/internal/splitter"
	"github.com/hass-tools/freely-split/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter(t *testing.T) {
	t.Parallel()

	_, err := splitter.NewWriter("")
	require.ErrorIs(t, err, splitter.ErrEmptyOutputDir, "NewWriter should refuse an empty directory")

	_, err = splitter.NewWriter(t.TempDir())
	require.NoError(t, err, "NewWriter should accept a directory")
}

func TestWrite(t *testing.T) {
	t.Parallel()

	resp := guide.Response{NID: "64865", Start: 100, Data: []byte(` {"b":1,"a":[1.50,"<x>"]}` + "\n")}
	g := splitter.Grouping{
		Buckets: []splitter.Bucket{
			{Key: "560", Name: "BBC One", Events: []guide.Event{
				{ID: "1", Channel: "560", Name: "News & Weather", StartTime: 100, EndTime: 160, Duration: 60},
			}},
			{Key: "empty", Name: "Empty", SourceID: "Empty Channel"},
		},
		Skipped:  2,
		Filtered: []string{"1059"},
	}

	tests := map[string]struct {
		existing map[string]string
		outDir   string
		data     string
		readOnly bool

		wantExtra map[string]string
		wantErr   bool
	}{
		"Writes every file": {},
		"Creates missing parents": {
			outDir: filepath.Join("sub", "dir"),
		},
		"Existing files are overwritten": {
			existing: map[string]string{
				"index.json":         "stale",
				"channels/560.json":  "{}",
				"raw/guide_100.json": "[]",
			},
		},
		"Other files are kept": {
			existing:  map[string]string{"channels/old.json": "{}\n"},
			wantExtra: map[string]string{"channels/old.json": "{}\n"},
		},

		"Error when output directory is a file": {
			existing: map[string]string{"out": "file"},
			outDir:   "out",
			wantErr:  true,
		},
		"Error when channels directory is a file": {
			existing: map[string]string{"channels": "file"},
			wantErr:  true,
		},
		"Error on invalid raw payload": {data: "{", wantErr: true},
		"Error on read only directory": {readOnly: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for p, content := range tc.existing {
				p = filepath.Join(root, filepath.FromSlash(p))
				require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750), "Setup: could not create directory")
				require.NoError(t, os.WriteFile(p, []byte(content), 0600), "Setup: could not write existing file")
			}
			outDir := filepath.Join(root, tc.outDir)
			if tc.readOnly {
				if !testutils.IsUnixNonRoot() {
					t.Skip("Permissions are not enforced on this platform or for root")
				}
				require.NoError(t, os.Chmod(root, 0500), "Setup: could not make directory read only")
				t.Cleanup(func() { _ = os.Chmod(root, 0700) })
			}

			r := resp
			if tc.data != "" {
				r.Data = []byte(tc.data)
			}

			w, err := splitter.NewWriter(outDir)
			require.NoError(t, err, "Setup: could not create writer")

			idx, err := w.Write(r, g)
			if tc.wantErr {
				require.Error(t, err, "Write should return an error")
				return
			}
			require.NoError(t, err, "Write should not return an error")

			want, err := testutils.GetDirContents(t, filepath.Join("testdata", "golden"), 3)
			require.NoError(t, err, "Setup: could not read golden files")
			for p, content := range tc.wantExtra {
				want[p] = content
			}

			got, err := testutils.GetDirContents(t, outDir, 3)
			require.NoError(t, err, "Could not read written files")
			assert.Equal(t, want, got, "Written files do not match the golden files")

			var wantIdx splitter.Index
			require.NoError(t, json.Unmarshal([]byte(want["index.json"]), &wantIdx), "Setup: could not decode golden index")
			assert.Equal(t, wantIdx, idx, "Write returned an unexpected index")
		})
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "guide.json"))
	require.NoError(t, err, "Setup: could not read guide")
	resp := guide.Response{NID: "64865", Start: 1714521600, Data: data}

	outDir := t.TempDir()
	var runs []map[string]string
	for range 2 {
		g, err := guide.Parse(resp.Data)
		require.NoError(t, err, "Setup: could not parse guide")

		w, err := splitter.NewWriter(outDir)
		require.NoError(t, err, "Setup: could not create writer")
		_, err = w.Write(resp, splitter.Group(g, lineup.Lineup{}))
		require.NoError(t, err, "Write should not return an error")

		got, err := testutils.GetDirContents(t, outDir, 3)
		require.NoError(t, err, "Could not read written files")
		runs = append(runs, got)
	}

	assert.Len(t, runs[0], 6, "Raw guide, index and one file per channel should be written")
	assert.Equal(t, runs[0], runs[1], "Rerunning should produce identical files")

	// Each channel file is identified by its file name.
	for p, content := range runs[0] {
		if !strings.HasPrefix(p, "channels/") {
			continue
		}
		var doc splitter.ChannelFile
		require.NoError(t, json.Unmarshal([]byte(content), &doc), "Channel file should be valid JSON")
		key := strings.TrimSuffix(strings.TrimPrefix(p, "channels/"), ".json")
		assert.Equal(t, key, doc.Channel.ID, "Channel id should match the file name")
		require.Len(t, doc.Compat.FreesatCard, 1, "Compat section should hold one card")
		assert.Equal(t, key, doc.Compat.FreesatCard[0].ChannelID, "Card channel id should match the file name")
		assert.Equal(t, eventIDs(doc.Events), eventIDs(doc.Compat.FreesatCard[0].Event), "Card should list the channel events")
	}
}

func eventIDs(events []guide.Event) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}

func TestPreview(t *testing.T) {
	t.Parallel()

	long := `{"title":"` + strings.Repeat("é", 1500) + `"}`

	tests := map[string]struct {
		data string

		want    string
		wantLen int
		wantErr bool
	}{
		"Compacted payload": {data: "{\n  \"a\": [1, 2],\n  \"b\": \"<x>\"\n}\n", want: `{"a":[1,2],"b":"<x>"}` + "\n"},
		"Truncated payload": {data: long, wantLen: 2000},

		"Error on invalid payload": {data: "{", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			err := splitter.Preview(&out, guide.Response{Data: []byte(tc.data)})
			if tc.wantErr {
				require.ErrorIs(t, err, guide.ErrInvalidPayload, "Preview should return an error")
				return
			}
			require.NoError(t, err, "Preview should not return an error")

			if tc.want != "" {
				assert.Equal(t, tc.want, out.String(), "Preview printed an unexpected payload")
			}
			if tc.wantLen != 0 {
				got := strings.TrimSuffix(out.String(), "\n")
				assert.LessOrEqual(t, len(got), tc.wantLen, "Preview should be truncated")
				assert.Greater(t, len(got), tc.wantLen-utf8.UTFMax, "Preview should not be truncated more than needed")
				assert.True(t, utf8.ValidString(got), "Preview should not cut a character")
			}
		})
	}
}
