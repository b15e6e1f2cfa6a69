package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroupValidatesKind(t *testing.T) {
	g, err := NewGroup(1, KindSite, "Engineering")
	require.NoError(t, err)
	assert.True(t, g.Active)
	assert.True(t, g.IsSite())
	assert.NotNil(t, g.TypeSettings)

	_, err = NewGroup(1, GroupKind("castle"), "Nonsense")
	assert.Error(t, err)
}

func TestGroupKindPredicatesAreExclusive(t *testing.T) {
	kinds := []GroupKind{
		KindSite, KindUser, KindOrganization, KindUserGroup,
		KindLayoutPrototype, KindControlPanel, KindCompany,
	}
	for _, kind := range kinds {
		g, err := NewGroup(1, kind, string(kind))
		require.NoError(t, err)

		matches := 0
		for _, pred := range []bool{
			g.IsSite(), g.IsUser(), g.IsOrganization(), g.IsUserGroup(),
			g.IsLayoutPrototype(), g.IsControlPanel(), g.IsCompany(),
		} {
			if pred {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "kind %s must match exactly one predicate", kind)
	}
}

func TestLayoutClone(t *testing.T) {
	l := &Layout{
		PLID:         10,
		GroupID:      3,
		Name:         "Home",
		TypeSettings: TypeSettings{"column-1": "nav"},
	}

	c := l.Clone()
	c.Name = "Copy"
	c.TypeSettings.Set("column-1", "other")

	assert.Equal(t, "Home", l.Name)
	assert.Equal(t, "nav", l.TypeSettings.Get("column-1"))
	assert.Equal(t, "other", c.TypeSettings.Get("column-1"))
}

func TestLayoutSetHasLogo(t *testing.T) {
	assert.False(t, (&LayoutSet{}).HasLogo())
	assert.True(t, (&LayoutSet{LogoID: 4}).HasLogo())
}
