package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/reactor/metadata"
)

type widget struct {
	Name  string `reactor:"name=Name"`
	Score int    `reactor:"name=Score"`
	Ratio float64
}

func TestReflectiveBuildsMetadataFromTags(t *testing.T) {
	w := &widget{Name: "gadget", Score: 7}

	props, err := metadata.Reflective(w)
	require.NoError(t, err)

	require.Contains(t, props, "Name")
	require.Contains(t, props, "Score")
	require.NotContains(t, props, "Ratio", "fields without the tag must be skipped")

	require.Equal(t, "gadget", props["Name"].Get(nil))
	require.Equal(t, 7, props["Score"].Get(nil))

	require.NoError(t, props["Name"].Set(nil, "renamed"))
	require.Equal(t, "renamed", w.Name)
}

func TestReflectiveRejectsNonPointer(t *testing.T) {
	_, err := metadata.Reflective(widget{})
	require.Error(t, err)
}

type derivedWidget struct {
	Base    int `reactor:"name=Base"`
	Doubled int `reactor:"name=Doubled,derived"`
}

func TestReflectiveMarksDerivedPropertiesReadOnly(t *testing.T) {
	w := &derivedWidget{Base: 5, Doubled: 10}

	props, err := metadata.Reflective(w)
	require.NoError(t, err)

	require.True(t, props["Doubled"].IsDerived)
	require.Nil(t, props["Doubled"].Set, "a derived property must have no setter")
}
