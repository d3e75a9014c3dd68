// Package tables resolves which tables an export run covers.
package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ErrNoSelection is returned when none of the selection modes was supplied.
var ErrNoSelection = errors.New("one of --table, --all-tables or --pattern is required")

// PatternError reports a table pattern that is not a valid regular expression.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid table pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// ListError reports a failed catalog listing.
type ListError struct {
	Err error
}

func (e *ListError) Error() string {
	return "list tables: " + e.Err.Error()
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// Lister is the part of a database session needed to enumerate tables.
type Lister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// Listing is the result of a catalog listing. An empty Tables with a nil Err
// means the database has no tables.
type Listing struct {
	Tables []string
	Err    error
}

// Enumerate lists every table visible to the session in server order.
func Enumerate(ctx context.Context, lister Lister, logger *slog.Logger) Listing {
	names, err := lister.ListTables(ctx)
	if err != nil {
		if logger != nil {
			logger.Error("failed to list tables", "error", err)
		}
		return Listing{Err: &ListError{Err: err}}
	}
	return Listing{Tables: names}
}

// Filter keeps the names that contain a match for pattern. An empty pattern
// returns names unchanged.
func Filter(names []string, pattern string) ([]string, error) {
	if pattern == "" {
		return names, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// ParseList splits a comma-separated table list, trimming each entry. Order
// and duplicates are preserved. Blank entries such as the middle of "a,,b" or
// "a, ,b" are dropped rather than exported as a table named "".
func ParseList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Selection is the caller's choice of tables. AllTables wins over Pattern,
// which wins over Tables.
type Selection struct {
	Tables    string
	AllTables bool
	Pattern   string
}

// Mode names the selection rule that Resolve will apply. A Tables value that
// is only whitespace counts as no selection.
func (s Selection) Mode() string {
	switch {
	case s.AllTables:
		return "all"
	case s.Pattern != "":
		return "pattern"
	case strings.TrimSpace(s.Tables) != "":
		return "list"
	default:
		return ""
	}
}

// Validate checks that a selection mode was given and that the pattern, if
// it is the rule in effect, compiles.
func (s Selection) Validate() error {
	switch s.Mode() {
	case "":
		return ErrNoSelection
	case "pattern":
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return &PatternError{Pattern: s.Pattern, Err: err}
		}
	}
	return nil
}

// Resolve returns the tables to export, in the order they will be exported.
func (s Selection) Resolve(ctx context.Context, lister Lister, logger *slog.Logger) ([]string, error) {
	switch s.Mode() {
	case "all":
		listing := Enumerate(ctx, lister, logger)
		return listing.Tables, listing.Err
	case "pattern":
		listing := Enumerate(ctx, lister, logger)
		if listing.Err != nil {
			return nil, listing.Err
		}
		return Filter(listing.Tables, s.Pattern)
	case "list":
		return ParseList(s.Tables), nil
	default:
		return nil, ErrNoSelection
	}
}
