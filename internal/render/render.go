// Package render produces the SVG profile and error cards.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/okian/soprofile/internal/domain/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Card templates.
const (
	TemplateProfile      = "profile"
	TemplateProfileSmall = "profile-small"
)

const (
	letterWidth  = 9
	letterMargin = 12

	errorLineWidth  = 45
	errorLineHeight = 20
	errorPadding    = 20
)

var cardTemplates = []string{TemplateProfile, TemplateProfileSmall}

// ProfileParams is the input for a profile card.
type ProfileParams struct {
	User         model.User
	Avatar       string
	Theme        string
	ShowWebsite  bool
	ShowLocation bool
}

// Renderer renders cards. It is safe for concurrent use.
type Renderer struct {
	tmpl   *template.Template
	themes map[string]Theme
}

type profileData struct {
	Avatar     string
	Username   string
	Reputation string
	Badges     model.Badges
	Location   string
	Website    string
	Theme      Theme

	BadgesMarginLeft      int
	BadgeSilverMarginLeft int
	BadgeBronzeMarginLeft int
}

type repBadgesData struct {
	profileData
	X, Y int
}

type iconData struct {
	Fill string
	X, Y int
}

// New parses the embedded templates and themes.
func New() (*Renderer, error) {
	themes, err := loadThemes(themesYAML)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("cards").Funcs(template.FuncMap{
		"truncate": truncate,
		"offset": func(d profileData, x, y int) repBadgesData {
			return repBadgesData{profileData: d, X: x, Y: y}
		},
		"icon": func(fill string, x, y int) iconData {
			return iconData{Fill: fill, X: x, Y: y}
		},
		"height": func(lines []string) int {
			return 2*errorPadding + len(lines)*errorLineHeight
		},
		"lineY": func(i int) int {
			return errorPadding + (i+1)*errorLineHeight - 5
		},
		"sub": func(a, b int) int { return a - b },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, themes: themes}, nil
}

// IsTemplate reports whether name is a card template.
func (r *Renderer) IsTemplate(name string) bool {
	for _, t := range cardTemplates {
		if t == name {
			return true
		}
	}
	return false
}

// IsTheme reports whether name is a known theme.
func (r *Renderer) IsTheme(name string) bool {
	_, ok := r.themes[name]
	return ok
}

// Templates lists the card templates.
func (r *Renderer) Templates() []string {
	return append([]string(nil), cardTemplates...)
}

// Themes lists the theme names in order.
func (r *Renderer) Themes() []string {
	return sortedKeys(r.themes)
}

// Profile renders a profile card with the named template.
func (r *Renderer) Profile(name string, p ProfileParams) (string, error) {
	if !r.IsTemplate(name) {
		return "", fmt.Errorf("%w '%s'", ErrUnknownTemplate, name)
	}
	if p.Theme == "" {
		p.Theme = DefaultTheme
	}
	theme, ok := r.themes[p.Theme]
	if !ok {
		return "", fmt.Errorf("%w '%s'", ErrUnknownTheme, p.Theme)
	}

	badges := p.User.Badges()
	data := profileData{
		Avatar:     p.Avatar,
		Username:   p.User.Username,
		Reputation: humanize.Comma(int64(p.User.Reputation)),
		Badges:     badges,
		Theme:      theme,
	}
	if p.ShowLocation {
		data.Location = p.User.Location
	}
	if p.ShowWebsite {
		data.Website = p.User.Website
	}
	data.BadgesMarginLeft, data.BadgeSilverMarginLeft, data.BadgeBronzeMarginLeft = badgeMargins(data.Reputation, badges)

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// badgeMargins lays badges out after the reputation text: each count is
// offset by the width of the counts before it.
func badgeMargins(reputation string, b model.Badges) (badges, silver, bronze int) {
	badges = letterWidth*utf8.RuneCountInString(reputation) + letterMargin

	silver = letterWidth * len(strconv.Itoa(b.Gold))
	if b.Gold > 0 {
		silver += letterMargin
	}

	bronze = letterWidth * len(strconv.Itoa(b.Silver))
	if b.Silver > 0 {
		bronze += silver + letterMargin
	}
	return badges, silver, bronze
}

// Error renders msg as an error card. Nested "Error: " prefixes are removed,
// the message is prefixed once and wrapped at 45 characters per line.
func (r *Renderer) Error(msg string) string {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "error", struct{ Lines []string }{ErrorLines(msg)}); err != nil {
		// the error template only ranges over strings
		return `<svg xmlns="http://www.w3.org/2000/svg"/>`
	}
	return buf.String()
}

// ErrorLines returns the wrapped lines of an error card.
func ErrorLines(msg string) []string {
	text := "Error: " + strings.ReplaceAll(msg, "Error: ", "")
	return chunk(text, errorLineWidth)
}

func chunk(s string, n int) []string {
	runes := []rune(s)
	lines := make([]string, 0, len(runes)/n+1)
	for len(runes) > n {
		lines = append(lines, string(runes[:n]))
		runes = runes[n:]
	}
	return append(lines, string(runes))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n-1]), " ") + "…"
}
