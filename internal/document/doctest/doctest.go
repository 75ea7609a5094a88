// Package doctest provides a scripted in-memory document.Document for tests.
//
// A page is a tree of Nodes. Each node maps selectors to the child nodes they
// match, so a query only ever looks one level down from the scope it runs in.
// Click behaviour is scripted with OnClick closures that mutate the tree or
// navigate the document.
package doctest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adyen/pricemonitor/internal/document"
)

// ErrNoPage is returned by Goto for URLs the fake was not given.
var ErrNoPage = errors.New("doctest: no such page")

// Node is one fake element.
type Node struct {
	Tag      string
	Text     string
	Attrs    map[string]string
	Hidden   bool
	Disabled bool
	Children map[string][]*Node
	// Content is the framed document of an IFRAME node.
	Content *Node
	OnClick func(d *Document) error
}

// El returns a visible node with the given tag and text.
func El(tag, text string) *Node {
	return &Node{Tag: strings.ToUpper(tag), Text: text}
}

// With registers children under selector and returns n.
func (n *Node) With(selector string, children ...*Node) *Node {
	if n.Children == nil {
		n.Children = make(map[string][]*Node)
	}
	n.Children[selector] = append(n.Children[selector], children...)
	return n
}

// Attr sets an attribute and returns n.
func (n *Node) Attr(name, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
	return n
}

// Clicked sets the click behaviour and returns n.
func (n *Node) Clicked(fn func(d *Document) error) *Node {
	n.OnClick = fn
	return n
}

// Page is one URL's content.
type Page struct {
	URL  string
	Root *Node
	Body string
}

// Document is a fake browsing context. It is not safe for concurrent use.
type Document struct {
	pages   map[string]*Page
	current *Page
	history []*Page
	pending *Document

	// GotoErr, when set, is consulted before every Goto.
	GotoErr func(url string) error

	Gotos       []string
	Screenshots []string
	Closed      bool
}

var _ document.Document = (*Document)(nil)

// New returns a document that knows the given pages and starts on about:blank.
func New(pages ...*Page) *Document {
	d := &Document{pages: make(map[string]*Page), current: &Page{URL: "about:blank", Root: El("html", "")}}
	for _, p := range pages {
		d.AddPage(p)
	}
	return d
}

// AddPage registers or replaces a page.
func (d *Document) AddPage(p *Page) {
	if p.Root == nil {
		p.Root = El("html", "")
	}
	d.pages[p.URL] = p
}

// Navigate moves to url, pushing the current page on the history stack. It is
// meant for OnClick scripts.
func (d *Document) Navigate(url string) error {
	p, ok := d.pages[url]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPage, url)
	}
	d.history = append(d.history, d.current)
	d.current = p
	return nil
}

// Open makes the running action open a new context positioned at url.
func (d *Document) Open(url string) {
	nd := New()
	nd.current = &Page{URL: url, Root: El("html", "")}
	if p, ok := d.pages[url]; ok {
		nd.current = p
	}
	d.pending = nd
}

func (d *Document) URL() string {
	return d.current.URL
}

func (d *Document) Goto(_ context.Context, url string) error {
	d.Gotos = append(d.Gotos, url)
	if d.GotoErr != nil {
		if err := d.GotoErr(url); err != nil {
			return err
		}
	}
	return d.Navigate(url)
}

func (d *Document) GoBack(_ context.Context) error {
	if len(d.history) == 0 {
		return errors.New("doctest: no history")
	}
	d.current = d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	return nil
}

func (d *Document) BodyText(_ context.Context) (string, error) {
	return d.current.Body, nil
}

func (d *Document) ExpectNewContext(_ context.Context, _ time.Duration, action func() error) (document.Document, error) {
	d.pending = nil
	if err := action(); err != nil {
		return nil, err
	}
	nd := d.pending
	d.pending = nil
	if nd == nil {
		return nil, nil
	}
	return nd, nil
}

func (d *Document) Screenshot(path string) error {
	d.Screenshots = append(d.Screenshots, path)
	return nil
}

func (d *Document) Close() error {
	d.Closed = true
	return nil
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]document.Element, error) {
	return query(d, d.current.Root, selector), nil
}

func (d *Document) WaitVisible(ctx context.Context, selector string, _ time.Duration) (document.Element, error) {
	return firstVisible(d, d.current.Root, selector)
}

// Element is a handle to a Node.
type Element struct {
	doc  *Document
	Node *Node
}

var _ document.Element = (*Element)(nil)

func (e *Element) QueryAll(_ context.Context, selector string) ([]document.Element, error) {
	return query(e.doc, e.Node, selector), nil
}

func (e *Element) WaitVisible(_ context.Context, selector string, _ time.Duration) (document.Element, error) {
	return firstVisible(e.doc, e.Node, selector)
}

func (e *Element) Click(_ context.Context, _ time.Duration) error {
	if e.Node.Hidden {
		return errors.New("doctest: element is not visible")
	}
	if e.Node.Disabled {
		return errors.New("doctest: element is disabled")
	}
	if e.Node.OnClick == nil {
		return nil
	}
	return e.Node.OnClick(e.doc)
}

func (e *Element) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(e.Node.Text), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, error) {
	return e.Node.Attrs[name], nil
}

func (e *Element) TagName(_ context.Context) (string, error) {
	return e.Node.Tag, nil
}

func (e *Element) Enabled(_ context.Context) (bool, error) {
	return !e.Node.Disabled, nil
}

func (e *Element) Frame(_ context.Context) (document.Scope, error) {
	if e.Node.Content == nil {
		return nil, fmt.Errorf("doctest: %s has no frame content", e.Node.Tag)
	}
	return &Element{doc: e.doc, Node: e.Node.Content}, nil
}

func (e *Element) Screenshot(path string) error {
	e.doc.Screenshots = append(e.doc.Screenshots, path)
	return nil
}

func query(d *Document, n *Node, selector string) []document.Element {
	var out []document.Element
	for _, child := range n.Children[selector] {
		if child.Hidden {
			continue
		}
		out = append(out, &Element{doc: d, Node: child})
	}
	return out
}

func firstVisible(d *Document, n *Node, selector string) (document.Element, error) {
	elems := query(d, n, selector)
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: %s", document.ErrNotFound, selector)
	}
	return elems[0], nil
}
