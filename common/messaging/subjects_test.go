package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGamesIngestedSubject(t *testing.T) {
	tests := []struct {
		sport string
		want  string
	}{
		{"football", "games.ingested.football"},
		{" Ice_Hockey ", "games.ingested.ice_hockey"},
		{"", "games.ingested.unknown"},
		{"a.b*c>d e", "games.ingested.a_b_c_d_e"},
	}

	for _, tt := range tests {
		t.Run(tt.sport, func(t *testing.T) {
			assert.Equal(t, tt.want, GamesIngestedSubject(tt.sport))
		})
	}
}

func TestGamesDLQSubject(t *testing.T) {
	assert.Equal(t, "games.dlq.malformed", GamesDLQSubject("malformed"))
	assert.Equal(t, "games.dlq.unknown", GamesDLQSubject("  "))
}

func TestSubjects_MatchWildcards(t *testing.T) {
	// Every generated subject must fall under its stream's wildcard.
	assert.True(t, strings.HasPrefix(GamesIngestedSubject("basketball"), strings.TrimSuffix(SubjectGamesIngestedAll, ">")))
	assert.True(t, strings.HasPrefix(GamesDLQSubject("malformed"), strings.TrimSuffix(SubjectGamesDLQAll, ">")))
	assert.Equal(t, 3, strings.Count(GamesIngestedSubject("x.y"), ".")+1)
}
