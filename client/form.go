package client

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	ErrFieldNotFound = errors.New("field not found")
	ErrUnknownOption = errors.New("no such option")
)

// emailPattern is the HTML living standard's "valid e-mail address".
var emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// floatPattern is the HTML "valid floating-point number" grammar.
var floatPattern = regexp.MustCompile(`^-?(?:[0-9]+(?:\.[0-9]+)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// parseHTMLFloat parses v the way number inputs do. NaN, Infinity and
// values that overflow are rejected.
func parseHTMLFloat(v string) (float64, bool) {
	if !floatPattern.MatchString(v) {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// HTMLForm is a <form> inside a Page. Values typed by the user (Fill) live
// beside the document; the markup keeps the defaults so Reset can restore
// them.
type HTMLForm struct {
	page    *Page
	sel     *goquery.Selection
	button  *DOMButton
	current map[*html.Node]string
	checked map[*html.Node]bool
}

var _ FormAdapter = (*HTMLForm)(nil)

func newHTMLForm(p *Page, sel *goquery.Selection, btn *DOMButton) *HTMLForm {
	return &HTMLForm{
		page:    p,
		sel:     sel,
		button:  btn,
		current: make(map[*html.Node]string),
		checked: make(map[*html.Node]bool),
	}
}

func (f *HTMLForm) SubmitButton() SubmitControl {
	return f.button
}

func (f *HTMLForm) controls() *goquery.Selection {
	return f.sel.Find("input, select, textarea")
}

func inputType(s *goquery.Selection) string {
	t := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
	if t == "" {
		return "text"
	}
	return t
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return s.Closest("fieldset[disabled]").Length() > 0
}

func isButtonType(t string) bool {
	switch t {
	case "submit", "button", "reset", "image":
		return true
	}
	return false
}

func isCheckable(t string) bool {
	return t == "checkbox" || t == "radio"
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

// Fill sets the current value of the named control, the way a user typing
// or picking an option would. For checkboxes and radios value selects which
// box is checked.
func (f *HTMLForm) Fill(name, value string) error {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()

	matched := f.controls().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == name
	})
	if matched.Length() == 0 {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}

	first := matched.First()
	switch goquery.NodeName(first) {
	case "select":
		found := false
		first.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
			found = optionValue(opt) == value
			return !found
		})
		if !found {
			return fmt.Errorf("%w: %q for %q", ErrUnknownOption, value, name)
		}
		f.current[first.Get(0)] = value
		return nil
	case "textarea":
		f.current[first.Get(0)] = value
		return nil
	}

	t := inputType(first)
	if !isCheckable(t) {
		f.current[first.Get(0)] = value
		return nil
	}

	hit := false
	matched.Each(func(_ int, s *goquery.Selection) {
		on := s.AttrOr("value", "on") == value
		if on {
			hit = true
		}
		if on || inputType(s) == "radio" {
			f.checked[s.Get(0)] = on
		}
	})
	if !hit {
		return fmt.Errorf("%w: %q for %q", ErrUnknownOption, value, name)
	}
	return nil
}

// Uncheck clears every checkbox named name.
func (f *HTMLForm) Uncheck(name string) {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()
	f.controls().Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("name", "") == name && inputType(s) == "checkbox" {
			f.checked[s.Get(0)] = false
		}
	})
}

func (f *HTMLForm) isChecked(s *goquery.Selection) bool {
	if on, ok := f.checked[s.Get(0)]; ok {
		return on
	}
	_, ok := s.Attr("checked")
	return ok
}

func (f *HTMLForm) value(s *goquery.Selection) string {
	v := f.rawValue(s)
	if goquery.NodeName(s) == "input" {
		switch inputType(s) {
		case "number", "range":
			// an unparseable number reads back as empty
			if _, ok := parseHTMLFloat(v); !ok {
				return ""
			}
		}
	}
	return v
}

func (f *HTMLForm) rawValue(s *goquery.Selection) string {
	if v, ok := f.current[s.Get(0)]; ok {
		return v
	}
	switch goquery.NodeName(s) {
	case "textarea":
		return s.Text()
	case "select":
		opts := s.Find("option")
		if sel := opts.Filter("[selected]").Last(); sel.Length() > 0 {
			return optionValue(sel)
		}
		if opts.Length() > 0 {
			return optionValue(opts.First())
		}
		return ""
	}
	if isCheckable(inputType(s)) {
		return s.AttrOr("value", "on")
	}
	return s.AttrOr("value", "")
}

// CollectFields builds the flat name -> value map FormData would produce,
// with later entries of the same name winning.
func (f *HTMLForm) CollectFields() map[string]string {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()

	fields := make(map[string]string)
	f.controls().Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" || isDisabled(s) {
			return
		}
		if goquery.NodeName(s) == "input" {
			t := inputType(s)
			if isButtonType(t) || t == "file" {
				return
			}
			if isCheckable(t) && !f.isChecked(s) {
				return
			}
		}
		fields[name] = f.value(s)
	})
	return fields
}

// Reset drops user-entered values so every control shows its default.
func (f *HTMLForm) Reset() {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()
	clear(f.current)
	clear(f.checked)
}

// IsValid runs the constraint checks a browser applies on checkValidity():
// required, minlength/maxlength, pattern, and the type-specific checks for
// email, url, number, range and date inputs.
func (f *HTMLForm) IsValid() bool {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()
	return len(f.invalidLocked()) == 0
}

// InvalidFields returns the names of the controls failing validation, in
// document order.
func (f *HTMLForm) InvalidFields() []string {
	f.page.mu.Lock()
	defer f.page.mu.Unlock()
	return f.invalidLocked()
}

func (f *HTMLForm) invalidLocked() []string {
	var invalid []string
	f.controls().Each(func(_ int, s *goquery.Selection) {
		if !f.validControl(s) {
			invalid = append(invalid, s.AttrOr("name", s.AttrOr("id", goquery.NodeName(s))))
		}
	})
	return invalid
}

func (f *HTMLForm) validControl(s *goquery.Selection) bool {
	if isDisabled(s) {
		return true
	}
	_, required := s.Attr("required")

	switch goquery.NodeName(s) {
	case "select":
		return !required || f.value(s) != ""
	case "textarea":
		if _, ro := s.Attr("readonly"); ro {
			return true
		}
		v := f.value(s)
		if v == "" {
			return !required
		}
		return f.validLength(s, v)
	}

	t := inputType(s)
	if isButtonType(t) || t == "hidden" {
		return true
	}
	if _, ro := s.Attr("readonly"); ro {
		return true
	}

	switch t {
	case "checkbox":
		return !required || f.isChecked(s)
	case "radio":
		name := s.AttrOr("name", "")
		if !required && !f.radioGroupRequired(name) {
			return true
		}
		return f.radioGroupChecked(name)
	}

	v := f.value(s)
	if v == "" {
		return !required
	}
	if !f.validLength(s, v) || !validPattern(s, t, v) {
		return false
	}

	switch t {
	case "email":
		return emailPattern.MatchString(v)
	case "url":
		u, err := url.Parse(v)
		return err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "")
	case "number", "range":
		n, ok := parseHTMLFloat(v)
		if !ok {
			return false
		}
		if lo, ok := parseHTMLFloat(s.AttrOr("min", "")); ok && n < lo {
			return false
		}
		if hi, ok := parseHTMLFloat(s.AttrOr("max", "")); ok && n > hi {
			return false
		}
		return validStep(s, n)
	case "date":
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return false
		}
		if lo, err := time.Parse(time.DateOnly, s.AttrOr("min", "")); err == nil && d.Before(lo) {
			return false
		}
		if hi, err := time.Parse(time.DateOnly, s.AttrOr("max", "")); err == nil && d.After(hi) {
			return false
		}
	}
	return true
}

// validLength applies minlength/maxlength to values the user entered;
// browsers do not flag markup defaults.
func (f *HTMLForm) validLength(s *goquery.Selection, v string) bool {
	if _, dirty := f.current[s.Get(0)]; !dirty {
		return true
	}
	n := utf8.RuneCountInString(v)
	if lo, err := strconv.Atoi(s.AttrOr("minlength", "")); err == nil && n < lo {
		return false
	}
	if hi, err := strconv.Atoi(s.AttrOr("maxlength", "")); err == nil && hi >= 0 && n > hi {
		return false
	}
	return true
}

// validStep reports a step mismatch. step defaults to 1 and "any" turns the
// check off; the base is min, then the default value, then 0.
func validStep(s *goquery.Selection, n float64) bool {
	raw := strings.TrimSpace(s.AttrOr("step", ""))
	if strings.EqualFold(raw, "any") {
		return true
	}
	step, ok := parseHTMLFloat(raw)
	if !ok || step <= 0 {
		step = 1
	}
	base := 0.0
	if lo, ok := parseHTMLFloat(s.AttrOr("min", "")); ok {
		base = lo
	} else if def, ok := parseHTMLFloat(s.AttrOr("value", "")); ok {
		base = def
	}
	q := (n - base) / step
	return math.Abs(q-math.Round(q)) <= 1e-9*math.Max(1, math.Abs(q))
}

// validPattern matches the whole value against the pattern attribute. An
// uncompilable pattern is ignored, as browsers do.
func validPattern(s *goquery.Selection, t, v string) bool {
	switch t {
	case "text", "search", "url", "tel", "email", "password":
	default:
		return true
	}
	pattern, ok := s.Attr("pattern")
	if !ok {
		return true
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return true
	}
	return re.MatchString(v)
}

// radioGroupRequired reports whether any radio sharing name is required;
// browsers then treat the whole group as required.
func (f *HTMLForm) radioGroupRequired(name string) bool {
	return f.controls().FilterFunction(func(_ int, s *goquery.Selection) bool {
		_, req := s.Attr("required")
		return req && inputType(s) == "radio" && s.AttrOr("name", "") == name
	}).Length() > 0
}

func (f *HTMLForm) radioGroupChecked(name string) bool {
	found := false
	f.controls().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if inputType(s) == "radio" && s.AttrOr("name", "") == name && f.isChecked(s) {
			found = true
		}
		return !found
	})
	return found
}
