package recipients_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/myrjola/flowcast/internal/recipients"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  []recipients.Raw
		want []recipients.Row
	}{
		{
			name: "duplicates after stripping",
			raw: []recipients.Raw{
				{Phone: "+91 99998-88877", Name: " Asha "},
				{Phone: "919999888877", Name: "Dup"},
				{Phone: "abc"},
			},
			want: []recipients.Row{{RecipientID: "919999888877", DisplayName: "Asha"}},
		},
		{
			name: "non-ascii digits are stripped",
			raw:  []recipients.Raw{{Phone: "٩١٢"}, {Phone: "(0) 12"}},
			want: []recipients.Row{{RecipientID: "012"}},
		},
		{
			name: "empty",
			want: []recipients.Row{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, recipients.Normalize(tt.raw))
		})
	}
}

func TestNormalize_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.SliceOf(rapid.Custom(func(rt *rapid.T) recipients.Raw {
			return recipients.Raw{
				Phone: rapid.StringMatching(`[+ ()0-9a-z-]{0,8}`).Draw(rt, "phone"),
				Name:  rapid.String().Draw(rt, "name"),
			}
		})).Draw(rt, "raw")

		rows := recipients.Normalize(raw)
		require.LessOrEqual(rt, len(rows), len(raw))
		seen := make(map[string]bool)
		for _, row := range rows {
			require.NotEmpty(rt, row.RecipientID)
			require.Empty(rt, strings.Trim(row.RecipientID, "0123456789"))
			require.False(rt, seen[row.RecipientID], "duplicate %s", row.RecipientID)
			seen[row.RecipientID] = true
		}
		require.Equal(rt, rows, recipients.Normalize(raw), "normalising is deterministic")
	})
}

func TestReadCSV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    []recipients.Raw
		wantErr error
	}{
		{
			name:  "template columns",
			input: "phoneNumber,userName\n919999888877,Optional Name\n917878787878,\n",
			want: []recipients.Raw{
				{Phone: "919999888877", Name: "Optional Name"},
				{Phone: "917878787878"},
			},
		},
		{
			name:  "alias columns in any order and case",
			input: "Name,extra,PHONE\nAsha,x,+91 1234\nRavi\n",
			want: []recipients.Raw{
				{Phone: "+91 1234", Name: "Asha"},
				{Name: "Ravi"},
			},
		},
		{
			name:  "no name column",
			input: "\ufeffphone\n123\n",
			want:  []recipients.Raw{{Phone: "123"}},
		},
		{
			name:    "no phone column",
			input:   "name\nAsha\n",
			wantErr: recipients.ErrMissingPhoneColumn,
		},
		{
			name: "empty input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := recipients.ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWriteSampleCSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, recipients.WriteSampleCSV(&buf))

	raw, err := recipients.ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, []recipients.Row{
		{RecipientID: "919999888877", DisplayName: "Optional Name"},
		{RecipientID: "917878787878"},
	}, recipients.Normalize(raw))
}
