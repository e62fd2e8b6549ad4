package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleBuilderKeepsOrder(t *testing.T) {
	m := NewModule("M").
		Test("a", func() {}).
		Timed("b", func() {}).
		Add(Unit{Name: "c", Body: func() {}})

	units := m.Units()
	require.Len(t, units, 3)

	assert.Equal(t, "a", units[0].Name)
	assert.False(t, units[0].MeasureTime)
	assert.Equal(t, "b", units[1].Name)
	assert.True(t, units[1].MeasureTime)
	assert.Equal(t, "c", units[2].Name)

	units[0].Name = "changed"
	assert.Equal(t, "a", m.Units()[0].Name)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(NewModule("First")))
	require.NoError(t, r.Register(NewModule("Second")))

	assert.Error(t, r.Register(NewModule("First")))
	assert.Error(t, r.Register(NewModule("")))
	assert.Error(t, r.Register(nil))

	mods := r.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, "First", mods[0].Name)
	assert.Equal(t, "Second", mods[1].Name)

	m, ok := r.Lookup("Second")
	assert.True(t, ok)
	assert.Equal(t, "Second", m.Name)

	_, ok = r.Lookup("Third")
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	m := NewModule("DefaultRegistryModule").Test("a", func() {})

	require.NoError(t, Register(m))
	assert.Error(t, Register(m))

	got, ok := DefaultRegistry.Lookup("DefaultRegistryModule")
	require.True(t, ok)
	assert.Same(t, m, got)
}
