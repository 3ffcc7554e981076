package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{
			name: "join",
			line: "join lobby alice",
			want: JoinRoom{Room: "lobby", Username: "alice"},
		},
		{
			name: "join keyword is case insensitive",
			line: "JoIn lobby alice",
			want: JoinRoom{Room: "lobby", Username: "alice"},
		},
		{
			name: "join with extra whitespace",
			line: "  join \t lobby   alice ",
			want: JoinRoom{Room: "lobby", Username: "alice"},
		},
		{
			name: "unicode names under limit",
			line: "join комната пользователь",
			want: JoinRoom{Room: "комната", Username: "пользователь"},
		},
		{
			name:    "join without arguments",
			line:    "join",
			wantErr: true,
		},
		{
			name:    "join without username",
			line:    "join lobby",
			wantErr: true,
		},
		{
			name:    "join with too many arguments",
			line:    "join lobby alice bob",
			wantErr: true,
		},
		{
			name:    "room name too long",
			line:    "join " + strings.Repeat("r", MaxNameLength) + " alice",
			wantErr: true,
		},
		{
			name:    "username too long",
			line:    "join lobby " + strings.Repeat("ж", MaxNameLength),
			wantErr: true,
		},
		{
			name: "names of 19 runes accepted",
			line: "join " + strings.Repeat("r", MaxNameLength-1) + " " + strings.Repeat("ж", MaxNameLength-1),
			want: JoinRoom{Room: strings.Repeat("r", MaxNameLength-1), Username: strings.Repeat("ж", MaxNameLength-1)},
		},
		{
			name: "plain text is a broadcast",
			line: "hi there",
			want: BroadcastMessage{Text: "hi there"},
		},
		{
			name: "joined word is not a command",
			line: "joined the party",
			want: BroadcastMessage{Text: "joined the party"},
		},
		{
			name: "newlines removed from broadcast",
			line: "multi\nline",
			want: BroadcastMessage{Text: "multiline"},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "blank line",
			line:    " \t ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidName(t *testing.T) {
	assert.False(t, ValidName(""))
	assert.True(t, ValidName("a"))
	assert.True(t, ValidName(strings.Repeat("é", MaxNameLength-1)))
	assert.False(t, ValidName(strings.Repeat("é", MaxNameLength)))
}
