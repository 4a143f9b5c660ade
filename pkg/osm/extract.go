package osm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	elemNode = "node"
	elemTag  = "tag"
)

// ExtractNode locates a <node> element in an OSM API 0.6 document and
// flattens its attributes and direct <tag> children.
//
// With a nil targetID the first node in document order is returned.
// Otherwise the first node whose id attribute parses to *targetID wins;
// nodes with missing or unparsable ids are skipped.
func ExtractNode(targetID *int64, xmlText string) (*RawNode, error) {
	requested := int64(-1)
	if targetID != nil {
		requested = *targetID
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return nil, newNotFound(requested, CauseMalformed, fmt.Errorf("parsing osm xml: %w", err))
	}
	if err := checkWellFormed(doc); err != nil {
		return nil, newNotFound(requested, CauseMalformed, fmt.Errorf("parsing osm xml: %w", err))
	}

	nodes := collectElements(&doc.Element, elemNode, nil)
	if len(nodes) == 0 {
		return nil, newNotFound(requested, CauseNoNodes, nil)
	}

	chosen := selectNode(nodes, targetID)
	if chosen == nil {
		return nil, newNotFound(requested, CauseNoMatch, nil)
	}

	raw := &RawNode{Tags: make(map[string]string)}
	var err error

	if raw.ID, err = intAttr(chosen, "id"); err != nil {
		return nil, newNotFound(requested, CauseMalformed, err)
	}
	if raw.Lat, err = floatAttr(chosen, "lat"); err != nil {
		return nil, newNotFound(requested, CauseMalformed, err)
	}
	if raw.Lon, err = floatAttr(chosen, "lon"); err != nil {
		return nil, newNotFound(requested, CauseMalformed, err)
	}

	for _, child := range chosen.ChildElements() {
		if child.FullTag() != elemTag {
			continue
		}
		k, _ := attr(child, "k")
		v, _ := attr(child, "v")
		raw.Tags[k] = v
	}

	return raw, nil
}

// checkWellFormed rejects what etree's tokenizer lets through: more or
// fewer than one root element, text outside the root and repeated attributes.
func checkWellFormed(doc *etree.Document) error {
	if len(doc.ChildElements()) != 1 {
		return errors.New("document must have exactly one root element")
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return errors.New("content outside the root element")
		}
	}
	return checkAttributes(doc.Root())
}

func checkAttributes(e *etree.Element) error {
	seen := make(map[string]struct{}, len(e.Attr))
	for _, a := range e.Attr {
		key := a.FullKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("attribute %s repeated on <%s>", key, e.FullTag())
		}
		seen[key] = struct{}{}
	}
	for _, child := range e.ChildElements() {
		if err := checkAttributes(child); err != nil {
			return err
		}
	}
	return nil
}

// collectElements walks the tree depth-first so the result is in document order.
// Names are compared with their prefix, no namespace resolution.
func collectElements(e *etree.Element, name string, out []*etree.Element) []*etree.Element {
	for _, child := range e.ChildElements() {
		if child.FullTag() == name {
			out = append(out, child)
		}
		out = collectElements(child, name, out)
	}
	return out
}

func selectNode(nodes []*etree.Element, targetID *int64) *etree.Element {
	if targetID == nil {
		return nodes[0]
	}
	for _, n := range nodes {
		s, ok := attr(n, "id")
		if !ok || s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if id == *targetID {
			return n
		}
	}
	return nil
}

// attr looks an attribute up by its literal (possibly prefixed) name.
// etree's SelectAttr treats an unprefixed key as matching any namespace.
func attr(e *etree.Element, key string) (string, bool) {
	for _, a := range e.Attr {
		if a.FullKey() == key {
			return a.Value, true
		}
	}
	return "", false
}

func intAttr(e *etree.Element, key string) (*int64, error) {
	s, _ := attr(e, key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("node attribute %s=%q: %w", key, s, err)
	}
	return &v, nil
}

func floatAttr(e *etree.Element, key string) (*float64, error) {
	s, _ := attr(e, key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("node attribute %s=%q: %w", key, s, err)
	}
	return &v, nil
}
