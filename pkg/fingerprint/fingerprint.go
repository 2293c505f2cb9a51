// Package fingerprint computes a stable composite hash identifying a UI
// screen, so ScreenStateManager can assign it a durable screen id and
// recognize when the crawl has returned to a state it has already visited.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"sort"
	"strings"
)

// UIElement is a normalized node of the captured UI tree. Only structural,
// stable attributes participate in the fingerprint; volatile ones
// (timestamps, dynamic counters, coordinates) have no field here, so
// ParseUITreeXML drops them when it builds the tree.
type UIElement struct {
	Class       string
	ResourceID  string
	Text        string
	ContentDesc string
	Children    []UIElement
}

// Composite computes the composite hash over activity and the normalized
// tree rooted at root. The same (activity, tree) always yields the same
// hash; a composite-hash collision is treated as identity by
// PersistenceStore.UpsertScreen.
func Composite(activity string, root UIElement) string {
	h := sha256.New()
	h.Write([]byte(activity))
	h.Write([]byte{0})
	writeElement(h, root)
	return hex.EncodeToString(h.Sum(nil))
}

// writeElement digests an element's stable fields and its children in a
// fixed, sorted order so that two structurally identical trees hash
// identically regardless of attribute map iteration order.
func writeElement(h interface{ Write([]byte) (int, error) }, el UIElement) {
	parts := []string{el.Class, el.ResourceID, el.Text, el.ContentDesc}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}

	children := make([]UIElement, len(el.Children))
	copy(children, el.Children)
	sort.SliceStable(children, func(i, j int) bool {
		return elementKey(children[i]) < elementKey(children[j])
	})
	for _, c := range children {
		writeElement(h, c)
	}
}

// elementKey gives a stable sort key for a child element so that ordering
// differences in the raw capture don't change the hash, while still
// distinguishing genuinely different siblings.
func elementKey(el UIElement) string {
	return el.Class + "|" + el.ResourceID + "|" + el.Text + "|" + el.ContentDesc
}

// rawNode mirrors the subset of Android's uiautomator XML dump this package
// understands: <node class="..." resource-id="..." text="..." content-desc="...">.
type rawNode struct {
	XMLName     xml.Name  `xml:"node"`
	Class       string    `xml:"class,attr"`
	ResourceID  string    `xml:"resource-id,attr"`
	Text        string    `xml:"text,attr"`
	ContentDesc string    `xml:"content-desc,attr"`
	Children    []rawNode `xml:"node"`
}

// ParseUITreeXML normalizes a raw uiautomator-style XML dump into a
// UIElement tree, stripping attributes that are not part of the
// fingerprint's stable identity (bounds, timestamps, checkable/focused
// state, and similar volatile flags).
func ParseUITreeXML(data []byte) (UIElement, error) {
	var root rawNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return UIElement{}, err
	}
	return convert(root), nil
}

func convert(n rawNode) UIElement {
	el := UIElement{
		Class:       strings.TrimSpace(n.Class),
		ResourceID:  strings.TrimSpace(n.ResourceID),
		Text:        strings.TrimSpace(n.Text),
		ContentDesc: strings.TrimSpace(n.ContentDesc),
	}
	for _, c := range n.Children {
		el.Children = append(el.Children, convert(c))
	}
	return el
}
