package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposite_DeterministicForIdenticalTree(t *testing.T) {
	tree := UIElement{Class: "android.widget.FrameLayout", Children: []UIElement{
		{Class: "android.widget.Button", ResourceID: "login_btn", Text: "Log in"},
	}}
	h1 := Composite("MainActivity", tree)
	h2 := Composite("MainActivity", tree)
	assert.Equal(t, h1, h2)
}

func TestComposite_DifferentActivityDifferentHash(t *testing.T) {
	tree := UIElement{Class: "android.widget.FrameLayout"}
	assert.NotEqual(t, Composite("MainActivity", tree), Composite("SettingsActivity", tree))
}

func TestComposite_ChildOrderIndependent(t *testing.T) {
	a := UIElement{Children: []UIElement{
		{Class: "Button", ResourceID: "a"},
		{Class: "Button", ResourceID: "b"},
	}}
	b := UIElement{Children: []UIElement{
		{Class: "Button", ResourceID: "b"},
		{Class: "Button", ResourceID: "a"},
	}}
	assert.Equal(t, Composite("MainActivity", a), Composite("MainActivity", b))
}

func TestComposite_DifferentContentDifferentHash(t *testing.T) {
	a := UIElement{Class: "Button", Text: "Log in"}
	b := UIElement{Class: "Button", Text: "Sign up"}
	assert.NotEqual(t, Composite("MainActivity", a), Composite("MainActivity", b))
}

func TestParseUITreeXML(t *testing.T) {
	xmlData := []byte(`<node class="android.widget.FrameLayout">
		<node class="android.widget.Button" resource-id="login_btn" text="Log in" bounds="[0,0][100,50]" />
	</node>`)

	root, err := ParseUITreeXML(xmlData)
	require.NoError(t, err)
	assert.Equal(t, "android.widget.FrameLayout", root.Class)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "login_btn", root.Children[0].ResourceID)
	assert.Equal(t, "Log in", root.Children[0].Text)
}
