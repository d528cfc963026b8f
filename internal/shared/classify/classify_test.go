package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func statusClassifier() *Classifier {
	return New(
		Rule{Label: "PLANNING", Keywords: []string{"planification", "programmé"}},
		Rule{Label: "IN_PROGRESS", Keywords: []string{"en cours", "exécution"}},
		Rule{Label: "COMPLETED", Keywords: []string{"achevé", "terminé"}},
	)
}

func TestClassify(t *testing.T) {
	c := statusClassifier()

	assert.Equal(t, "PLANNING", c.Classify("Phase de planification"))
	assert.Equal(t, "IN_PROGRESS", c.Classify("EN COURS D'EXECUTION"))
	assert.Equal(t, "COMPLETED", c.Classify("Projet acheve"))
	assert.Equal(t, "", c.Classify("Suspendu"))
	assert.Equal(t, "", c.Classify("   "))
}

func TestFirstRuleWins(t *testing.T) {
	c := statusClassifier()
	assert.Equal(t, "PLANNING", c.Classify("planification en cours"))
}

func TestWithOverrides(t *testing.T) {
	c := statusClassifier().WithOverrides(map[string][]string{
		"COMPLETED": {"clôturé"},
		"SUSPENDED": {"suspendu"},
		"CANCELLED": {"annulé"},
	})

	assert.Equal(t, []string{"PLANNING", "IN_PROGRESS", "COMPLETED", "CANCELLED", "SUSPENDED"}, c.Labels())
	assert.Equal(t, "COMPLETED", c.Classify("Marché clôturé"))
	assert.Equal(t, "", c.Classify("Projet achevé"))
	assert.Equal(t, "SUSPENDED", c.Classify("Suspendu"))
	assert.True(t, c.Has("CANCELLED"))
	assert.False(t, c.Has("UNKNOWN"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "instance de maturation de plan budgetaire", Fold(" Instance de maturation de plan budgétaire "))
}

func TestNilClassifier(t *testing.T) {
	var c *Classifier
	assert.Equal(t, "", c.Classify("anything"))
	assert.Nil(t, c.Labels())
}
