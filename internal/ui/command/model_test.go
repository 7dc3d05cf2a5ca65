package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"scan", "scan"},
		{"  Verify ", "verify"},
		{"refresh", "reload"},
		{"config", "settings"},
		{"q", "quit"},
		{"ev", "evidence"},
		{"se", "settings"},
		{"s", "s"},
		{"bogus", "bogus"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.in))
		})
	}
}

func TestEnterEmitsResolvedCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("aud")})
	assert.Contains(t, m.View(), "audit ledger")
	assert.NotContains(t, m.View(), "evidence ledger")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("audit"), cmd())
	assert.Empty(t, m.input.Value())
}

func TestEnterOnEmptyInputDoesNothing(t *testing.T) {
	m := New(80, 24)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}
