package proposal

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// TimestampLayout is the second-granularity UTC timestamp used in branch
// names and titles.
const TimestampLayout = "20060102150405"

// Templates control the names and messages a run produces. They use
// {tag} placeholders; see Tags for the available ones.
type Templates struct {
	Branch string `yaml:"branch"`
	Title  string `yaml:"title"`
	Commit string `yaml:"commit"`
	Body   string `yaml:"body"`
}

// DefaultTemplates mirror the names the governance plugins have always used.
func DefaultTemplates() Templates {
	return Templates{
		Branch: "{purpose}-{timestamp}",
		Title:  "{purpose}-{timestamp}",
		Commit: "{summary} ({timestamp})",
		Body:   "{summary}",
	}
}

// Tags lists the placeholders every template may reference.
var Tags = []string{"purpose", "timestamp", "summary", "path", "mode", "owner", "name"}

// WithDefaults fills empty templates from DefaultTemplates.
func (t Templates) WithDefaults() Templates {
	def := DefaultTemplates()
	if t.Branch == "" {
		t.Branch = def.Branch
	}
	if t.Title == "" {
		t.Title = def.Title
	}
	if t.Commit == "" {
		t.Commit = def.Commit
	}
	if t.Body == "" {
		t.Body = def.Body
	}
	return t
}

// Validate parses every template and rejects unknown tags.
func (t Templates) Validate() error {
	var errs []string
	for name, src := range map[string]string{
		"branch": t.Branch,
		"title":  t.Title,
		"commit": t.Commit,
		"body":   t.Body,
	} {
		if src == "" {
			continue
		}
		if err := validateTemplate(src); err != nil {
			errs = append(errs, fmt.Sprintf("%s template: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid templates: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTemplate(src string) error {
	tpl, err := fasttemplate.NewTemplate(src, "{", "}")
	if err != nil {
		return err
	}
	_, err = tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		for _, known := range Tags {
			if tag == known {
				return 0, nil
			}
		}
		return 0, fmt.Errorf("unknown tag {%s}", tag)
	})
	return err
}

// summaryOf is the change summary, or "{purpose} {path}" when it is blank.
func summaryOf(change ProposedChange) string {
	if s := strings.TrimSpace(change.Summary); s != "" {
		return s
	}
	return change.Purpose + " " + change.Path
}

// render executes src with vars. Templates are validated at load time, so
// a parse failure here falls back to the raw source.
func render(src string, vars map[string]any) string {
	tpl, err := fasttemplate.NewTemplate(src, "{", "}")
	if err != nil {
		return src
	}
	return tpl.ExecuteString(vars)
}
