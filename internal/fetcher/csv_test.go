package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_StripsBOM(t *testing.T) {
	input := "\ufeffsource,target\nA,B\n"
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "target"}, <-headerCh)
	assert.Equal(t, [][]string{{"A", "B"}}, rows)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		opts       CSVOptions
		wantHeader []string
		wantRows   [][]string
		wantErr    bool
	}{
		{
			name:       "header and rows",
			input:      "source,target,raw_support_value\nA,B,0.01\nB,C,\n",
			opts:       CSVOptions{HasHeader: true},
			wantHeader: []string{"source", "target", "raw_support_value"},
			wantRows:   [][]string{{"A", "B", "0.01"}, {"B", "C", ""}},
		},
		{
			name:       "tab delimited with trim",
			input:      "source\ttarget\n A \t B \n",
			opts:       CSVOptions{HasHeader: true, Delimiter: '\t', TrimSpace: true},
			wantHeader: []string{"source", "target"},
			wantRows:   [][]string{{"A", "B"}},
		},
		{
			name:       "blank rows skipped",
			input:      "source,target\n,\nA,B\n",
			opts:       CSVOptions{HasHeader: true},
			wantHeader: []string{"source", "target"},
			wantRows:   [][]string{{"A", "B"}},
		},
		{
			name:    "bare quote fails whole read",
			input:   "source,target\nA,\"B\nC,D\n",
			opts:    CSVOptions{HasHeader: true},
			wantErr: true,
		},
		{
			name:  "empty input",
			input: "",
			opts:  CSVOptions{HasHeader: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, rows, err := ReadCSV(context.Background(), strings.NewReader(tt.input), tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, header)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}
