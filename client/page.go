package client

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const (
	// SuccessMessageSelector locates the element revealed after a booking.
	SuccessMessageSelector = ".success-message"
	// SubmitButtonSelector locates the submit control inside the form.
	SubmitButtonSelector = `button[type="submit"]`
	// LoadingClass is added to the submit button while a request is in flight.
	LoadingClass = "loading"
)

var (
	ErrFormNotFound           = errors.New("form not found")
	ErrSubmitButtonNotFound   = errors.New("submit button not found")
	ErrSuccessMessageNotFound = errors.New("success message element not found")
)

// Page is a parsed booking page. Every element handed out by a Page shares
// its lock, since goquery documents are not safe for concurrent mutation.
type Page struct {
	mu  sync.Mutex
	doc *goquery.Document
}

func LoadPage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

func LoadPageFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPage(f)
}

// Form returns the first form matching selector ("form" when empty). The
// form must contain a submit button.
func (p *Page) Form(selector string) (*HTMLForm, error) {
	if strings.TrimSpace(selector) == "" {
		selector = "form"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 || goquery.NodeName(sel) != "form" {
		return nil, fmt.Errorf("%w: %q", ErrFormNotFound, selector)
	}
	btn := sel.Find(SubmitButtonSelector).First()
	if btn.Length() == 0 {
		return nil, fmt.Errorf("%w in %q", ErrSubmitButtonNotFound, selector)
	}

	return newHTMLForm(p, sel, &DOMButton{page: p, sel: btn}), nil
}

// SuccessMessage returns the page's success message element.
func (p *Page) SuccessMessage() (*Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find(SuccessMessageSelector).First()
	if sel.Length() == 0 {
		return nil, ErrSuccessMessageNotFound
	}
	return &Element{page: p, sel: sel}, nil
}

// HTML renders the current state of the document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

// DOMButton is a submit button inside a Page.
type DOMButton struct {
	page *Page
	sel  *goquery.Selection
}

var _ SubmitControl = (*DOMButton)(nil)

func (b *DOMButton) SetBusy(busy bool) {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	if busy {
		b.sel.AddClass(LoadingClass)
	} else {
		b.sel.RemoveClass(LoadingClass)
	}
}

func (b *DOMButton) SetLabel(label string) {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	b.sel.SetText(label)
}

func (b *DOMButton) State() SubmitButtonState {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	return SubmitButtonState{
		IsLoading: b.sel.HasClass(LoadingClass),
		Label:     strings.TrimSpace(b.sel.Text()),
	}
}

// Element is a page element whose visibility is driven through its inline
// style attribute.
type Element struct {
	page *Page
	sel  *goquery.Selection
}

var _ Toggle = (*Element)(nil)

// Show sets display: block, keeping every other inline declaration.
func (e *Element) Show() {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.sel.SetAttr("style", setDisplay(e.sel.AttrOr("style", ""), "block"))
}

// Visible reports whether the inline style sets a display other than none.
func (e *Element) Visible() bool {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	display, ok := inlineDisplay(e.sel.AttrOr("style", ""))
	return ok && display != "none"
}

func splitStyle(style string) [][2]string {
	var decls [][2]string
	for _, part := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		decls = append(decls, [2]string{prop, strings.TrimSpace(value)})
	}
	return decls
}

func inlineDisplay(style string) (string, bool) {
	display, found := "", false
	for _, d := range splitStyle(style) {
		if d[0] == "display" {
			display, found = strings.ToLower(d[1]), true
		}
	}
	return display, found
}

func setDisplay(style, display string) string {
	var parts []string
	for _, d := range splitStyle(style) {
		if d[0] == "display" {
			continue
		}
		parts = append(parts, d[0]+": "+d[1])
	}
	parts = append(parts, "display: "+display)
	return strings.Join(parts, "; ")
}
