// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"taskify/internal/config"
	"taskify/internal/service"
	"taskify/internal/session"
)

// DateLayout is how task dates are shown in text output.
const DateLayout = "2006-01-02"

// Listing is a window of tasks as printed by list and search.
type Listing struct {
	Tasks []service.Task `json:"tasks" yaml:"tasks"`
	Total int            `json:"total" yaml:"total"`
	Query service.Query  `json:"query" yaml:"query"`
}

// Profile is the public part of a session user.
type Profile struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Email      string `json:"email" yaml:"email"`
	ProfileURL string `json:"profileURL,omitempty" yaml:"profileURL,omitempty"`
}

// ProfileOf drops the tokens from u.
func ProfileOf(u session.User) Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, ProfileURL: u.ProfileURL}
}

// FormatTask formats a numbered task line.
// Format: "{N:>4}  [x] {TEXT}  {DATE}\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	mark := " "
	if task.Completed {
		mark = "x"
	}
	line := fmt.Sprintf("%4d  [%s] %s", num, mark, normalizeTitle(task.Text))
	if !task.Date.IsZero() {
		line += "  " + task.Date.Format(DateLayout)
	}
	fmt.Fprintln(w, line)
}

// FormatListing writes a listing in the given format.
func FormatListing(w io.Writer, format string, l Listing) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, l)
	case config.FormatYAML:
		return writeYAML(w, l)
	}

	if len(l.Tasks) == 0 {
		if l.Query.Search != "" {
			fmt.Fprintf(w, "no tasks match %q\n", l.Query.Search)
		} else {
			fmt.Fprintln(w, "no tasks found")
		}
		return nil
	}
	for i, t := range l.Tasks {
		FormatTask(w, i+1, t)
	}
	if len(l.Tasks) < l.Total {
		fmt.Fprintf(w, "(%d of %d, run with --more to see more)\n", len(l.Tasks), l.Total)
	}
	return nil
}

// FormatSingleTask writes one task, e.g. after add or edit.
func FormatSingleTask(w io.Writer, format string, t service.Task) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, t)
	case config.FormatYAML:
		return writeYAML(w, t)
	}
	FormatTask(w, 1, t)
	return nil
}

// FormatProfile writes the signed-in user.
func FormatProfile(w io.Writer, format string, p Profile) error {
	switch format {
	case config.FormatJSON:
		return writeJSON(w, p)
	case config.FormatYAML:
		return writeYAML(w, p)
	}
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = "(no name)"
	}
	fmt.Fprintf(w, "%s <%s>\n", name, p.Email)
	if p.ProfileURL != "" {
		fmt.Fprintf(w, "photo: %s\n", p.ProfileURL)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// normalizeTitle normalizes a task text for display.
// - Empty or whitespace-only texts become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
