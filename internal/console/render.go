package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/newswire/internal/news"
)

const rule = "------------------------------------------------------------"

type styles struct {
	header lipgloss.Style
	title  lipgloss.Style
	label  lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	faint  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().Bold(true).Border(lipgloss.DoubleBorder(), true, false).Padding(0, 2),
		title:  r.NewStyle().Bold(true),
		label:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("3")),
		err:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		faint:  r.NewStyle().Faint(true),
	}
}

func (s styles) printHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.header.Render(title))
}

func (s styles) field(w io.Writer, name, value string) {
	if strings.TrimSpace(value) == "" {
		value = "N/A"
	}
	fmt.Fprintf(w, "%s %s\n", s.label.Render(name+":"), value)
}

// renderArticles lists up to limit articles and returns the shown slice.
func (s styles) renderArticles(w io.Writer, articles []news.Article, limit int) []news.Article {
	s.printHeader(w, "HEADLINES")
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}
	shown := articles[:min(limit, len(articles))]
	for i, a := range shown {
		fmt.Fprintf(w, "\n%d. ", i+1)
		s.field(w, "Title", a.Title)
		s.field(w, "   Source", a.Source.Name)
		s.field(w, "   Author", a.Author)
		fmt.Fprintln(w, s.faint.Render(rule))
	}
	return shown
}

func (s styles) renderArticle(w io.Writer, a news.Article) {
	s.printHeader(w, "HEADLINE DETAILS")
	s.field(w, "Title", a.Title)
	s.field(w, "Source", a.Source.Name)
	s.field(w, "Author", a.Author)
	s.field(w, "Description", a.Description)
	s.field(w, "URL", a.URL)
	if ts, ok := a.Published(); ok {
		s.field(w, "Published Date", ts.Format("2006-01-02"))
		s.field(w, "Published Time", ts.Format("15:04:05"))
	} else if a.PublishedAt != "" {
		s.field(w, "Published", a.PublishedAt)
	}
}

// renderSources lists up to limit sources and returns the shown slice.
func (s styles) renderSources(w io.Writer, sources []news.Source, limit int) []news.Source {
	s.printHeader(w, "SOURCES")
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return nil
	}
	shown := sources[:min(limit, len(sources))]
	for i, src := range shown {
		fmt.Fprintf(w, "%d. %s\n", i+1, src.Name)
		fmt.Fprintln(w, s.faint.Render(rule))
	}
	return shown
}

func (s styles) renderSource(w io.Writer, src news.Source) {
	s.printHeader(w, "SOURCE DETAILS")
	s.field(w, "Name", src.Name)
	s.field(w, "Country", strings.ToUpper(src.Country))
	s.field(w, "Description", src.Description)
	s.field(w, "URL", src.URL)
	s.field(w, "Category", src.Category)
	s.field(w, "Language", src.Language)
}

func (s styles) renderFailure(w io.Writer, message string) {
	if strings.TrimSpace(message) == "" {
		message = "Unknown error"
	}
	fmt.Fprintln(w, s.err.Render("Error: "+message))
	fmt.Fprintln(w, s.faint.Render("You can try again."))
}
