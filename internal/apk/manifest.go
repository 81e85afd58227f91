package apk

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

const (
	manifestElement = "manifest"
	packageAttr     = "package"
	xmlHeader       = `<?xml version="1.0" encoding="utf-8" standalone="no"?>` + "\n"
)

// NUL cannot appear in a parsed XML 1.0 document, so these placeholders never
// collide with real attribute content.
var (
	attrPlaceholders = strings.NewReplacer("\n", "\x00n", "\r", "\x00r", "\t", "\x00t")
	attrEntities     = strings.NewReplacer("\x00n", "&#10;", "\x00r", "&#13;", "\x00t", "&#9;")
)

// ReadPackage returns the package attribute of a decoded manifest.
func ReadPackage(manifestPath string) (string, error) {
	doc, err := loadManifest(manifestPath)
	if err != nil {
		return "", err
	}
	root, err := manifestRoot(doc)
	if err != nil {
		return "", err
	}
	attr, _ := findAttr(root, packageAttr)
	return attr.Value, nil
}

// PatchPackage sets the manifest's package attribute to pkg and writes the
// document back in place. Every other attribute and element is left as is.
func PatchPackage(manifestPath, pkg string) (old string, err error) {
	info, err := os.Stat(manifestPath)
	if err != nil {
		return "", pipe.Wrap(pipe.ManifestParseError, err, "failed to stat manifest")
	}
	src, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", pipe.Wrap(pipe.ManifestParseError, err, "failed to open manifest")
	}
	doc, err := parseManifest(src)
	if err != nil {
		return "", err
	}
	root, err := manifestRoot(doc)
	if err != nil {
		return "", err
	}
	attr, _ := findAttr(root, packageAttr)
	old = attr.Value

	root.SetAttr(packageAttr, pkg)

	var buf bytes.Buffer
	if !hasDeclaration(src) {
		// the parser inserts a bare <?xml version="1.0"?> when the source has none
		dropSyntheticDeclaration(doc)
		buf.WriteString(xmlHeader)
	}
	protectAttrWhitespace(doc)
	buf.WriteString(attrEntities.Replace(doc.OutputXMLWithOptions(
		xmlquery.WithEmptyTagSupport(),
		xmlquery.WithPreserveSpace(),
	)))
	if err := os.WriteFile(manifestPath, buf.Bytes(), info.Mode().Perm()|0o200); err != nil {
		return old, pipe.Wrap(pipe.Internal, err, "failed to write manifest")
	}
	return old, nil
}

func loadManifest(manifestPath string) (*xmlquery.Node, error) {
	src, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, pipe.Wrap(pipe.ManifestParseError, err, "failed to open manifest")
	}
	return parseManifest(src)
}

func parseManifest(src []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, pipe.Wrap(pipe.ManifestParseError, err, "failed to parse AndroidManifest.xml")
	}
	return doc, nil
}

// manifestRoot returns the <manifest> element, requiring its package attribute.
func manifestRoot(doc *xmlquery.Node) (*xmlquery.Node, error) {
	var root *xmlquery.Node
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			root = n
			break
		}
	}
	if root == nil {
		return nil, pipe.Fail(pipe.ManifestParseError, "failed to parse AndroidManifest.xml: no root element")
	}
	if root.Data != manifestElement || root.Prefix != "" {
		return nil, pipe.Fail(pipe.ManifestParseError, "failed to parse AndroidManifest.xml: root element is <%s>, want <%s>", qualified(root), manifestElement)
	}
	if _, ok := findAttr(root, packageAttr); !ok {
		return nil, pipe.Fail(pipe.ManifestParseError, "failed to parse AndroidManifest.xml: <manifest> has no %s attribute", packageAttr)
	}
	return root, nil
}

func findAttr(n *xmlquery.Node, local string) (xmlquery.Attr, bool) {
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a, true
		}
	}
	return xmlquery.Attr{}, false
}

// hasDeclaration reports whether the raw document opens with an XML declaration.
func hasDeclaration(src []byte) bool {
	src = bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))
	src = bytes.TrimLeft(src, " \t\r\n")
	return bytes.HasPrefix(src, []byte("<?xml")) && len(src) > 5 && bytes.IndexByte([]byte(" \t\r\n?"), src[5]) >= 0
}

func dropSyntheticDeclaration(doc *xmlquery.Node) {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.DeclarationNode && n.FirstChild == nil {
			xmlquery.RemoveFromTree(n)
			return
		}
	}
}

// protectAttrWhitespace swaps newlines, carriage returns and tabs in attribute
// values for placeholders so they survive serialization as character references.
func protectAttrWhitespace(n *xmlquery.Node) {
	if n.Type == xmlquery.ElementNode {
		for i := range n.Attr {
			n.Attr[i].Value = attrPlaceholders.Replace(n.Attr[i].Value)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		protectAttrWhitespace(c)
	}
}

func qualified(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return fmt.Sprintf("%s:%s", n.Prefix, n.Data)
	}
	return n.Data
}
