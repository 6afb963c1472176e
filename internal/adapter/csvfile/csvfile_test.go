package csvfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	in := "\uFEFFCounty, Prob_Spike_8w,Notes\nRamsey,0.7,\"Food shelf, north\"\n\n Anoka ,0.2\n"

	tbl, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"County", "Prob_Spike_8w", "Notes"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Food shelf, north", tbl.Rows[0]["Notes"])
	assert.Equal(t, "Anoka ", tbl.Rows[1]["County"])
	assert.Equal(t, "", tbl.Rows[1]["Notes"])
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestRead_Malformed(t *testing.T) {
	_, err := Read(strings.NewReader("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
}

func TestWriteThenRead_PreservesColumnsAndCells(t *testing.T) {
	tbl := domain.Table{
		Columns: []string{"Household_ID", "Region", "Risk_Score", "Risk_Band"},
		Rows: []domain.Row{
			{"Household_ID": "H-1", "Region": "Iron Range", "Risk_Score": "72.5", "Risk_Band": "Orange"},
			{"Household_ID": "H-2", "Region": "Metro, East", "Risk_Score": "", "Risk_Band": ""},
		},
	}

	data, err := Bytes(tbl)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Household_ID,Region,Risk_Score,Risk_Band\n"))

	back, err := Parse(data)
	require.NoError(t, err)
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overview.csv")
	require.NoError(t, os.WriteFile(path, []byte("County,RAG_Status\nDakota,Green\n"), 0o600))

	tbl, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Green", tbl.Rows[0]["RAG_Status"])

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRows_OmitsHeader(t *testing.T) {
	var buf bytes.Buffer
	tbl := domain.Table{Columns: []string{"Region", "Notes"}, Rows: []domain.Row{{"Region": "North", "Notes": "line one, two"}}}
	require.NoError(t, WriteRows(&buf, tbl))
	assert.Equal(t, "North,\"line one, two\"\n", buf.String())
}

func TestParse_DuplicateHeaderKeepsCellsAligned(t *testing.T) {
	tbl, err := Parse([]byte("Region,Region,Unemployment,Region.1,Region\nNorth,dup,42,x,y\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Region", "Region.1", "Unemployment", "Region.1.1", "Region.2"}, tbl.Columns)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, domain.Row{
		"Region":       "North",
		"Region.1":     "dup",
		"Unemployment": "42",
		"Region.1.1":   "x",
		"Region.2":     "y",
	}, tbl.Rows[0])
}
