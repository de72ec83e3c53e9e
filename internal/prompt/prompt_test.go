package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildBareHasPlaceholder(t *testing.T) {
	got := Build(Context{})
	assert.True(t, strings.HasPrefix(got, MasterBase))
	assert.Contains(t, got, "Relevant context from memory:\nNo relevant memories found.")
	assert.NotContains(t, got, "Additional instructions:")
}

func TestBuildWithMemoryAndRelationship(t *testing.T) {
	got := Build(Context{
		MemoryContext:           "- likes hiking",
		CoreRelationshipContext: "- trusts direct feedback",
	})
	assert.Contains(t, got, "Relevant context from memory:\n- likes hiking")
	assert.Contains(t, got, "Core relationship context:\n- trusts direct feedback")
}

func TestBuildAdditionalInstructions(t *testing.T) {
	got := Build(Context{AdditionalInstructions: "Calendar event already created."})
	assert.Contains(t, got, "Additional instructions:\nCalendar event already created.")
}
