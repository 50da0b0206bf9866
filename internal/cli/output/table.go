package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"
)

// Tabular is implemented by results that choose their own columns.
type Tabular interface {
	Table() *Table
}

// TableFormatter formats data as aligned columns.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders data as a table. Tabular values and *Table render as
// given; a struct becomes a FIELD/VALUE listing and a slice of structs one
// row per element. Anything else falls back to YAML.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	var t *Table
	switch v := data.(type) {
	case Tabular:
		t = v.Table()
	case *Table:
		t = v
	default:
		var err error
		if t, err = reflectTable(reflect.ValueOf(data)); err != nil {
			return (&YAMLFormatter{}).Format(w, data)
		}
	}
	return t.Render(w, f.NoHeaders)
}

func reflectTable(v reflect.Value) (*Table, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return &Table{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		fields := columns(v.Type())
		for _, i := range fields {
			t.AddRow(columnName(v.Type().Field(i)), Cell(v.Field(i).Interface()))
		}
		return t, nil
	case reflect.Slice, reflect.Array:
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			t := &Table{Headers: []string{"VALUE"}}
			for i := 0; i < v.Len(); i++ {
				t.AddRow(Cell(v.Index(i).Interface()))
			}
			return t, nil
		}
		fields := columns(elem)
		t := &Table{}
		for _, i := range fields {
			t.Headers = append(t.Headers, strings.ToUpper(columnName(elem.Field(i))))
		}
		for r := 0; r < v.Len(); r++ {
			row := reflect.Indirect(v.Index(r))
			cells := make([]string, 0, len(fields))
			for _, i := range fields {
				cells = append(cells, Cell(row.Field(i).Interface()))
			}
			t.AddRow(cells...)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", v.Kind())
	}
}

// columns returns the exported fields of t not tagged table:"-".
func columns(t reflect.Type) []int {
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("table") == "-" {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

func columnName(f reflect.StructField) string {
	if tag := f.Tag.Get("yaml"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Cell formats one value for a table cell.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "-"
		}
		return Cell(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", rv.Len())
	case reflect.Map:
		if rv.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", rv.Len())
	case reflect.Struct:
		return "{...}"
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", rv.Float())
	default:
		return fmt.Sprint(v)
	}
}

// Table is tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table with columns separated by two spaces.
func (t *Table) Render(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
