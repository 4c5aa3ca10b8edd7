package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Meta is one <meta> tag, keyed by its property or name attribute
type Meta struct {
	Property string
	Content  string
}

// Script is the text of one <script> element with its attributes
type Script struct {
	Attrs map[string]string
	Text  string
}

// Document is the subset of an HTML page the strategies and parsers read
type Document struct {
	Metas   []Meta
	Links   map[string]string
	Scripts []Script
}

// ParseDocument walks the page once and collects meta tags, links and scripts
func ParseDocument(payload string) *Document {
	doc := &Document{Links: make(map[string]string)}
	root, err := html.Parse(strings.NewReader(payload))
	if err != nil {
		return doc
	}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				property := getAttr(n, "property")
				if property == "" {
					property = getAttr(n, "name")
				}
				content := getAttr(n, "content")
				if property != "" && content != "" {
					doc.Metas = append(doc.Metas, Meta{Property: property, Content: content})
				}
			case "link":
				rel := strings.ToLower(getAttr(n, "rel"))
				href := getAttr(n, "href")
				if rel != "" && href != "" {
					if _, ok := doc.Links[rel]; !ok {
						doc.Links[rel] = href
					}
				}
			case "script":
				s := Script{Attrs: make(map[string]string, len(n.Attr))}
				for _, a := range n.Attr {
					s.Attrs[a.Key] = a.Val
				}
				var b strings.Builder
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						b.WriteString(c.Data)
					}
				}
				s.Text = b.String()
				doc.Scripts = append(doc.Scripts, s)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(root)
	return doc
}

// Meta returns the content of the first meta tag with the given property
func (d *Document) Meta(property string) string {
	for _, m := range d.Metas {
		if m.Property == property {
			return m.Content
		}
	}
	return ""
}

// ScriptsOfType returns the text of scripts whose type attribute equals typ
func (d *Document) ScriptsOfType(typ string) []string {
	var out []string
	for _, s := range d.Scripts {
		if strings.EqualFold(s.Attrs["type"], typ) {
			out = append(out, s.Text)
		}
	}
	return out
}

// getAttr gets an attribute value from an HTML node
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
