package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare json",
			reply: `{"name": "Lumis House"}`,
			want:  `{"name": "Lumis House"}`,
		},
		{
			name:  "fenced json",
			reply: "Here you go:\n```json\n{\"name\": \"Lumis House\"}\n```",
			want:  `{"name": "Lumis House"}`,
		},
		{
			name:  "fence without language tag",
			reply: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose around object",
			reply: `Sure! The data is {"a": 1} as requested.`,
			want:  `{"a": 1}`,
		},
		{
			name:  "unterminated fence",
			reply: "```json\n{\"a\": 1}",
			want:  `{"a": 1}`,
		},
		{
			name:    "no json",
			reply:   "I could not find any structured data.",
			wantErr: true,
		},
		{
			name:    "invalid json",
			reply:   `{"a": }`,
			wantErr: true,
		},
		{
			name:    "empty",
			reply:   "   ",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReply(tc.reply)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(got))
		})
	}
}
