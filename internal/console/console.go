// Package console is the interactive terminal front end for newsclient.
package console

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/danmuck/newswire/internal/news"
	"github.com/danmuck/newswire/internal/protocol"
	"github.com/danmuck/newswire/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const DefaultListLimit = 15

// Session is the client conversation the console drives.
type Session interface {
	Hello(name string) error
	OpenHeadlines() error
	OpenSources() error
	Search(kind protocol.FilterKind, value string) (json.RawMessage, error)
	ListAll() (json.RawMessage, error)
	Back() error
	Quit() error
	Close() error
}

var _ Session = (*session.Client)(nil)

type Options struct {
	// Name skips the name prompt when set.
	Name      string
	ListLimit int
}

type App struct {
	sess   Session
	in     *bufio.Reader
	out    io.Writer
	opts   Options
	styles styles
}

func New(sess Session, in io.Reader, out io.Writer, opts Options) *App {
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}
	return &App{
		sess:   sess,
		in:     bufio.NewReader(in),
		out:    out,
		opts:   opts,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// Run drives the session until the user quits, input ends, or the
// connection drops. End of input closes the session without error.
func (a *App) Run() error {
	err := a.run()
	if errors.Is(err, io.EOF) {
		log.Debug().Msg("console.App.Run input closed")
		_ = a.sess.Close()
		return nil
	}
	return err
}

func (a *App) run() error {
	if err := a.greet(); err != nil {
		return err
	}
	for {
		a.printMainMenu()
		choice, err := a.promptInt("Enter your choice", 1, 3)
		if err != nil {
			return err
		}
		switch choice {
		case 1:
			if err := a.sess.OpenHeadlines(); err != nil {
				if a.retryable(err) {
					continue
				}
				return err
			}
			if err := a.submenu(protocol.TargetHeadlines); err != nil {
				return err
			}
		case 2:
			if err := a.sess.OpenSources(); err != nil {
				if a.retryable(err) {
					continue
				}
				return err
			}
			if err := a.submenu(protocol.TargetSources); err != nil {
				return err
			}
		case 3:
			err := a.sess.Quit()
			fmt.Fprintln(a.out, a.styles.title.Render("Goodbye!"))
			return err
		}
	}
}

func (a *App) greet() error {
	name := strings.TrimSpace(a.opts.Name)
	for {
		if name == "" {
			var err error
			if name, err = a.promptRequired("Enter your name"); err != nil {
				return err
			}
		}
		err := a.sess.Hello(name)
		if err == nil {
			fmt.Fprintln(a.out, a.styles.title.Render(fmt.Sprintf("Connected to server as %s", name)))
			return nil
		}
		if !a.retryable(err) {
			return err
		}
		name = ""
	}
}

func (a *App) submenu(target protocol.Target) error {
	for {
		a.printSubmenu(target)
		choice, err := a.promptInt("Enter your choice", 1, 5)
		if err != nil {
			return err
		}
		if choice == 5 {
			return a.sess.Back()
		}

		kind, err := protocol.OptionFilter(target, fmt.Sprint(choice))
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if protocol.NeedsValue(kind) {
			value, err := a.promptValue(kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, a.styles.faint.Render("Fetching data from server..."))
			raw, err = a.sess.Search(kind, value)
			if err != nil {
				if a.retryable(err) {
					continue
				}
				return err
			}
		} else {
			fmt.Fprintln(a.out, a.styles.faint.Render("Fetching data from server..."))
			if raw, err = a.sess.ListAll(); err != nil {
				if a.retryable(err) {
					continue
				}
				return err
			}
		}

		if err := a.show(target, raw); err != nil {
			return err
		}
		if err := a.pause(); err != nil {
			return err
		}
	}
}

// promptValue collects a filter value. Closed sets are picked by number, so
// the value sent after READY is always one the server accepts.
func (a *App) promptValue(kind protocol.FilterKind) (string, error) {
	switch kind {
	case protocol.FilterKeyword:
		return a.promptRequired("Enter keyword")
	case protocol.FilterCategory:
		return a.promptPick("Available categories:", protocol.Categories, func(v string) string { return v })
	case protocol.FilterCountry:
		return a.promptPick("Available countries:", protocol.Countries, func(v string) string {
			return fmt.Sprintf("%s (%s)", protocol.CountryNames[v], v)
		})
	case protocol.FilterLanguage:
		return a.promptPick("Available languages:", protocol.Languages, func(v string) string {
			return fmt.Sprintf("%s (%s)", protocol.LanguageNames[v], v)
		})
	default:
		return "", fmt.Errorf("%w: %s", protocol.ErrUnknownOption, kind)
	}
}

func (a *App) show(target protocol.Target, raw json.RawMessage) error {
	res, err := news.DecodeResult(raw)
	if err != nil {
		a.styles.renderFailure(a.out, "Invalid response from server")
		return nil
	}
	if !res.OK() {
		a.styles.renderFailure(a.out, res.Message)
		return nil
	}

	if target == protocol.TargetHeadlines {
		shown := a.styles.renderArticles(a.out, res.Articles, a.opts.ListLimit)
		if len(shown) == 0 {
			return nil
		}
		idx, ok, err := a.promptDetail("article", len(shown))
		if err != nil || !ok {
			return err
		}
		a.styles.renderArticle(a.out, shown[idx])
		return nil
	}

	shown := a.styles.renderSources(a.out, res.Sources, a.opts.ListLimit)
	if len(shown) == 0 {
		return nil
	}
	idx, ok, err := a.promptDetail("source", len(shown))
	if err != nil || !ok {
		return err
	}
	a.styles.renderSource(a.out, shown[idx])
	return nil
}

// retryable reports server rejections to the user and lets the caller loop.
func (a *App) retryable(err error) bool {
	if errors.Is(err, session.ErrRejected) {
		a.styles.renderFailure(a.out, "server rejected the request")
		return true
	}
	return false
}

func (a *App) printMainMenu() {
	a.styles.printHeader(a.out, "MAIN MENU")
	fmt.Fprintln(a.out, "  1) Search for headlines")
	fmt.Fprintln(a.out, "  2) List of sources")
	fmt.Fprintln(a.out, "  3) Quit")
}

func (a *App) printSubmenu(target protocol.Target) {
	if target == protocol.TargetHeadlines {
		a.styles.printHeader(a.out, "HEADLINES MENU")
		fmt.Fprintln(a.out, "  1) Search by keyword")
		fmt.Fprintln(a.out, "  2) Search by category")
		fmt.Fprintln(a.out, "  3) Search by country")
		fmt.Fprintln(a.out, "  4) List all headlines")
	} else {
		a.styles.printHeader(a.out, "SOURCES MENU")
		fmt.Fprintln(a.out, "  1) Search by category")
		fmt.Fprintln(a.out, "  2) Search by country")
		fmt.Fprintln(a.out, "  3) Search by language")
		fmt.Fprintln(a.out, "  4) List all sources")
	}
	fmt.Fprintln(a.out, "  5) Back to main menu")
}
