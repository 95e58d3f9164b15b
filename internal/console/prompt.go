package console

import (
	"fmt"
	"strconv"
	"strings"
)

func (a *App) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	line, err := a.in.ReadString('\n')
	if err != nil {
		if line != "" && strings.TrimSpace(line) != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptRequired re-prompts until a non-blank line is entered.
func (a *App) promptRequired(label string) (string, error) {
	for {
		line, err := a.promptLine(label)
		if err != nil {
			return "", err
		}
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
		fmt.Fprintln(a.out, a.styles.warn.Render("A value is required."))
	}
}

func (a *App) promptInt(label string, min int, max int) (int, error) {
	for {
		line, err := a.promptLine(fmt.Sprintf("%s [%d-%d]", label, min, max))
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || v < min || v > max {
			fmt.Fprintln(a.out, a.styles.warn.Render("Invalid choice. Please try again."))
			continue
		}
		return v, nil
	}
}

// promptPick shows a numbered list and returns the chosen value.
func (a *App) promptPick(title string, values []string, label func(string) string) (string, error) {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, a.styles.title.Render(title))
	for i, v := range values {
		fmt.Fprintf(a.out, "  %d) %s\n", i+1, label(v))
	}
	choice, err := a.promptInt("Select number", 1, len(values))
	if err != nil {
		return "", err
	}
	return values[choice-1], nil
}

// promptDetail asks for an optional item number. Blank or out-of-range input
// skips the detail view.
func (a *App) promptDetail(noun string, count int) (int, bool, error) {
	line, err := a.promptLine(fmt.Sprintf("Enter %s number for details (or press Enter to skip)", noun))
	if err != nil {
		return 0, false, err
	}
	idx, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || idx < 1 || idx > count {
		return 0, false, nil
	}
	return idx - 1, true, nil
}

func (a *App) pause() error {
	_, err := a.promptLine("\nPress Enter to continue...")
	return err
}
