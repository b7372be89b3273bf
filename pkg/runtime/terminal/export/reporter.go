package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, use text, json or yaml", s)
	}
}

type Column struct {
	Title string
	Width int
}

type TableConfig struct {
	Cards        []Column
	Findings     []Column
	Repositories []Column
	Accounts     []Column
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		Cards: []Column{
			{Title: "Category", Width: 18}, {Title: "Total", Width: 7}, {Title: "Open", Width: 7},
			{Title: "Critical", Width: 8}, {Title: "High", Width: 7},
		},
		Findings: []Column{
			{Title: "ID", Width: 8}, {Title: "Severity", Width: 8}, {Title: "Status", Width: 24},
			{Title: "Title", Width: 40}, {Title: "Details", Width: 44},
		},
		Repositories: []Column{
			{Title: "ID", Width: 8}, {Title: "Name", Width: 30}, {Title: "URL", Width: 48},
			{Title: "Last scan", Width: 16},
		},
		Accounts: []Column{
			{Title: "ID", Width: 8}, {Title: "Account", Width: 30}, {Title: "Provider", Width: 8},
			{Title: "Last sync", Width: 16}, {Title: "State", Width: 30},
		},
	}
}

type Reporter struct {
	writer io.Writer
	format Format
	config TableConfig
}

func NewReporter(writer io.Writer, format Format) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	if format == "" {
		format = FormatText
	}
	return &Reporter{
		writer: writer,
		format: format,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) Format() Format {
	return c.format
}

const dashboardTmpl = `
Security Dashboard
{{if .Message}}
{{.Message}}
{{else}}
{{separator}}
{{header}}
{{separator}}
{{range .Cards}}{{row .Title .Total .Open .Critical .High}}
{{end}}{{separator}}

Recent Critical Findings
{{range .RecentCritical}}- [{{.Source}}] {{.Title}}{{if .Link}} ({{.Link}}){{end}}
{{else}}{{.EmptyMessage}}
{{end}}{{end}}`

const listTmpl = `
{{.Title}}
{{if .Err}}Error: {{.Err}}
{{end}}{{if .Loaded}}{{if .Items}}{{separator}}
{{header}}
{{separator}}
{{range .Items}}{{template "row" .}}{{end}}{{separator}}
{{else}}{{.EmptyMessage}}
{{end}}{{else if not .Err}}Loading...
{{end}}`

const findingRowTmpl = `{{define "row"}}{{row .ID .Severity .Status .Title .Detail}}
{{if .Error}}  ! {{.Error}}
{{end}}{{end}}`

const repositoryRowTmpl = `{{define "row"}}{{row .ID .Name .URL .LastScanAt}}
{{end}}`

const accountRowTmpl = `{{define "row"}}{{row .ID .Name .Provider .LastSyncAt .State}}
{{end}}`

func (c *Reporter) Dashboard(rec DashboardRecord) error {
	return c.handle("dashboard", dashboardTmpl, c.config.Cards, rec)
}

func (c *Reporter) Findings(list List[FindingRecord]) error {
	return c.handle("findings", listTmpl+findingRowTmpl, c.config.Findings, list)
}

func (c *Reporter) Repositories(list List[RepositoryRecord]) error {
	return c.handle("repositories", listTmpl+repositoryRowTmpl, c.config.Repositories, list)
}

func (c *Reporter) Accounts(list List[AccountRecord]) error {
	return c.handle("accounts", listTmpl+accountRowTmpl, c.config.Accounts, list)
}

// Message prints a one-line confirmation. Structured formats get an object.
func (c *Reporter) Message(msg string) error {
	switch c.format {
	case FormatText:
		_, err := fmt.Fprintln(c.writer, msg)
		return err
	default:
		return c.encode(map[string]string{"message": msg})
	}
}

func (c *Reporter) handle(name, tmpl string, columns []Column, data any) error {
	if c.format != FormatText {
		return c.encode(data)
	}

	t, err := template.New(name).Funcs(tableFuncs(columns)).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, data)
}

func (c *Reporter) encode(data any) error {
	switch c.format {
	case FormatJSON:
		enc := json.NewEncoder(c.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(c.writer)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", c.format)
	}
}

func tableFuncs(columns []Column) template.FuncMap {
	row := func(values ...any) string {
		cells := make([]string, 0, len(columns))
		for i, col := range columns {
			var v string
			if i < len(values) {
				v = fmt.Sprint(values[i])
			}
			cells = append(cells, fmt.Sprintf(" %-*s ", col.Width, truncate(v, col.Width)))
		}
		return "|" + strings.Join(cells, "|") + "|"
	}

	return template.FuncMap{
		"row": row,
		"header": func() string {
			titles := make([]any, 0, len(columns))
			for _, col := range columns {
				titles = append(titles, col.Title)
			}
			return row(titles...)
		},
		"separator": func() string {
			parts := make([]string, 0, len(columns))
			for _, col := range columns {
				parts = append(parts, strings.Repeat("-", col.Width+2))
			}
			return "+" + strings.Join(parts, "+") + "+"
		},
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
