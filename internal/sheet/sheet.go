// Package sheet adjusts rendered item sheets: it lets the window size
// itself and injects the add-on's quick roll options into the markup.
package sheet

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/dnd"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/hooks"
	"github.com/chrisgms/fvtt-ready-set-roll-5e/internal/items"
)

// AutoHeight is the height value that lets the host size the window.
const AutoHeight = "auto"

// ContentClass marks the block injected by InjectContent.
const ContentClass = hooks.ModuleShort + "-quickroll"

// Position is a sheet window's placement.
type Position struct {
	Width  int
	Height string
}

// App is a rendered item sheet.
type App struct {
	ID       string
	Title    string
	Item     *dnd.Item
	Position Position
}

// Renderer implements the sheet side of the add-on.
type Renderer struct{}

// NormalizeHeight sets the window height to auto.
func (Renderer) NormalizeHeight(app *App) error {
	if app == nil {
		return fmt.Errorf("%w: nil sheet", hooks.ErrInvalidArgument)
	}
	app.Position.Height = AutoHeight
	return nil
}

// InjectContent appends the quick roll block to the sheet's details tab,
// or to its form or body when there is no details tab. A block injected by
// an earlier render is replaced.
func (Renderer) InjectContent(app *App, root *html.Node) error {
	if app == nil || root == nil {
		return fmt.Errorf("%w: nil sheet or markup", hooks.ErrInvalidArgument)
	}

	if old := find(root, func(n *html.Node) bool { return hasClass(n, ContentClass) }); old != nil {
		old.Parent.RemoveChild(old)
	}

	target := find(root, func(n *html.Node) bool { return hasClass(n, "tab") && hasClass(n, "details") })
	if target == nil {
		target = find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Form })
	}
	if target == nil {
		target = find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Body })
	}
	if target == nil {
		target = root
	}

	target.AppendChild(content(app))

	return nil
}

func content(app *App) *html.Node {
	div := element(atom.Div, html.Attribute{Key: "class", Val: ContentClass})
	fs := element(atom.Fieldset)
	legend := element(atom.Legend)
	legend.AppendChild(&html.Node{Type: html.TextNode, Data: "Quick Roll"})
	fs.AppendChild(legend)
	div.AppendChild(fs)

	if app.Item == nil {
		return div
	}

	flags := app.Item.Flags(items.Scope)
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := flags[k].(type) {
		case bool:
			fs.AppendChild(checkbox(k, v))
		case []bool:
			for i, on := range v {
				fs.AppendChild(checkbox(fmt.Sprintf("%s.%d", k, i), on))
			}
		}
	}

	return div
}

func checkbox(name string, checked bool) *html.Node {
	label := element(atom.Label, html.Attribute{Key: "class", Val: "checkbox"})
	input := element(atom.Input,
		html.Attribute{Key: "type", Val: "checkbox"},
		html.Attribute{Key: "name", Val: "flags." + items.Scope + "." + name},
	)
	if checked {
		input.Attr = append(input.Attr, html.Attribute{Key: "checked"})
	}
	label.AppendChild(input)
	label.AppendChild(&html.Node{Type: html.TextNode, Data: name})
	return label
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// Parse reads sheet markup.
func Parse(markup string) (*html.Node, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse sheet markup: %w", err)
	}
	return root, nil
}

// Render serializes a sheet tree back to markup.
func Render(root *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render sheet markup: %w", err)
	}
	return buf.String(), nil
}

// DefaultMarkup is the skeleton the simulated host renders for an item.
func DefaultMarkup(item *dnd.Item) string {
	name := ""
	if item != nil {
		name = html.EscapeString(item.Name)
	}
	return `<form class="dnd5e sheet item"><header><h1>` + name +
		`</h1></header><section class="sheet-body"><div class="tab description"></div>` +
		`<div class="tab details"></div></section></form>`
}
