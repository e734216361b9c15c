package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var csvHeader = []string{
	"id", "name", "price", "original_price", "discount", "currency", "brand", "seller",
	"shipping", "condition", "sold_quantity", "available_quantity", "image", "url", "source", "strategy",
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file    *os.File
	writer  *csv.Writer
	written int
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []*models.ProductRecord) error {
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Name,
			rec.Price,
			rec.OriginalPrice,
			rec.Discount,
			rec.Currency,
			rec.Brand,
			rec.Seller,
			rec.Shipping,
			rec.Condition,
			quantity(rec.SoldQuantity),
			quantity(rec.AvailableQuantity),
			rec.Image,
			rec.URL,
			rec.Source,
			rec.Strategy,
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	cw.written += len(records)
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures at least one row follows the header.
func (cw *CSVWriter) Validate() error {
	if cw.written == 0 {
		return fmt.Errorf("csv file has no records")
	}
	return nil
}

func quantity(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	closer  io.Closer
	writer  *bufio.Writer
	encoder *json.Encoder
	written int
}

// NewJSONWriter initialises a JSON writer on filename. An empty name or "-"
// writes to stdout.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if filename == "" || filename == "-" {
		return NewJSONStreamWriter(os.Stdout), nil
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}
	return newJSONWriter(f, f), nil
}

// NewJSONStreamWriter writes JSONL to w, which Close leaves open.
func NewJSONStreamWriter(w io.Writer) *JSONWriter {
	return newJSONWriter(w, nil)
}

func newJSONWriter(w io.Writer, closer io.Closer) *JSONWriter {
	buffer := bufio.NewWriter(w)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		closer:  closer,
		writer:  buffer,
		encoder: encoder,
	}
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.ProductRecord) error {
	for _, rec := range records {
		if err := jw.encoder.Encode(rec); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	jw.written += len(records)
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	if jw.closer == nil {
		return nil
	}
	return jw.closer.Close()
}

// Validate ensures something was written.
func (jw *JSONWriter) Validate() error {
	if jw.written == 0 {
		return fmt.Errorf("json output has no records")
	}
	return nil
}

// ConsoleWriter renders each batch as a table.
type ConsoleWriter struct {
	out     io.Writer
	title   string
	written int
}

// NewConsoleWriter writes tables to out.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

// SetTitle sets the caption of the next rendered table.
func (cw *ConsoleWriter) SetTitle(title string) {
	cw.title = title
}

// Write renders records with a running row number.
func (cw *ConsoleWriter) Write(records []*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cw.out)
	t.SetStyle(table.StyleRounded)
	if cw.title != "" {
		t.SetTitle("%s", cw.title)
	}
	t.AppendHeader(table.Row{"#", "ID", "Name", "Price", "Discount", "Shipping", "Seller", "URL"})
	for _, rec := range records {
		cw.written++
		t.AppendRow(table.Row{
			cw.written,
			rec.ID,
			text.Trim(rec.Name, 60),
			rec.Price,
			rec.Discount,
			rec.Shipping,
			rec.Seller,
			text.Trim(rec.URL, 50),
		})
	}
	t.Render()
	return nil
}

// Close is a no-op; the console is not owned by the writer.
func (cw *ConsoleWriter) Close() error {
	return nil
}

// Validate ensures at least one row was printed.
func (cw *ConsoleWriter) Validate() error {
	if cw.written == 0 {
		return fmt.Errorf("no records printed")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
