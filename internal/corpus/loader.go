package corpus

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

// rowBufferSize is how many parquet rows are decoded per read.
const rowBufferSize = 256

// Loader opens logical corpora using the per-corpus metadata mappings from
// the configuration.
type Loader struct {
	cfg    *config.Config
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(cfg *config.Config, opts ...LoaderOption) *Loader {
	l := &Loader{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// column describes one parquet leaf column after renaming.
type column struct {
	name      string
	timestamp bool
	tsUnit    format.TimeUnit
	dateDays  bool
	isLemmas  bool
}

// Documents streams the documents of one logical corpus. It is a finite,
// non-restartable sequence: Next returns io.EOF after the last row and the
// caller must Close it.
type Documents struct {
	corpusName string
	file       *os.File
	pfile      *parquet.File

	columns   []column
	fieldList []string
	lemmaCols []string

	groups   []parquet.RowGroup
	groupIdx int
	rows     parquet.Rows
	buf      []parquet.Row
	bufLen   int
	bufIdx   int

	vocab  *vocabulary
	logger *slog.Logger
}

// Open reads the manifest, opens the parquet file, and prepares the
// document stream. The title and date column mapping comes from the
// configuration section keyed by the manifest stem; a corpus without a
// section cannot be indexed.
func (l *Loader) Open(manifestPath string) (*Documents, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	stem := Stem(manifestPath)

	section, ok := l.cfg.SectionFor(stem)
	if !ok {
		return nil, ewberrors.Newf(ewberrors.ErrCodeCorpusSectionAbsent,
			"no corpora.%s section in the configuration; title_field and date_field are required", stem)
	}

	ds := manifest.Dtsets[0]
	f, err := os.Open(ds.Parquet)
	if err != nil {
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"cannot open corpus parquet file", err).
			WithDetail("parquet", ds.Parquet)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ewberrors.InternalError("cannot stat corpus parquet file", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
			"corpus file is not valid parquet", err).
			WithDetail("parquet", ds.Parquet)
	}

	docs := &Documents{
		corpusName: stem,
		file:       f,
		pfile:      pf,
		groups:     pf.RowGroups(),
		buf:        make([]parquet.Row, rowBufferSize),
		vocab:      newVocabulary(),
		logger:     l.logger,
	}
	if err := docs.resolveColumns(ds, section); err != nil {
		_ = f.Close()
		return nil, err
	}

	l.logger.Info("corpus opened",
		"corpus", stem,
		"parquet", ds.Parquet,
		"documents", pf.NumRows(),
		"columns", len(docs.fieldList))
	return docs, nil
}

// resolveColumns maps the parquet leaf columns onto output field names,
// applying the id/title/date renames and recording which columns carry
// timestamps and which carry lemmas.
func (d *Documents) resolveColumns(ds Dataset, section config.CorpusConfig) error {
	rename := map[string]string{
		ds.IDField: "id",
	}
	if section.TitleField != "" {
		rename[section.TitleField] = "title"
	}
	if section.DateField != "" {
		rename[section.DateField] = "date"
	}

	lemmaSet := map[string]bool{}
	for _, name := range ds.LemmasFields {
		lemmaSet[name] = true
	}

	schema := d.pfile.Schema()
	types := map[string]parquet.Type{}
	for _, field := range schema.Fields() {
		types[field.Name()] = field.Type()
	}

	paths := schema.Columns()
	d.columns = make([]column, len(paths))
	sawID := false
	for i, path := range paths {
		source := path[len(path)-1]
		name := source
		if renamed, ok := rename[source]; ok {
			name = renamed
		}
		if name == "id" {
			sawID = true
		}

		col := column{name: name, isLemmas: lemmaSet[source]}
		if t, ok := types[source]; ok {
			if lt := t.LogicalType(); lt != nil {
				switch {
				case lt.Timestamp != nil:
					col.timestamp = true
					col.tsUnit = lt.Timestamp.Unit
				case lt.Date != nil:
					col.dateDays = true
				}
			}
		}
		d.columns[i] = col
		if col.isLemmas {
			d.lemmaCols = append(d.lemmaCols, name)
		}
		d.fieldList = append(d.fieldList, name)
	}

	if !sawID {
		return ewberrors.Newf(ewberrors.ErrCodeInvalidManifest,
			"idfld %q is not a column of the parquet file", ds.IDField)
	}

	// Computed fields join the registry column list alongside the source
	// columns.
	d.fieldList = append(d.fieldList, "all_lemmas", "nwords_per_doc", "bow")
	return nil
}

// Columns returns the corpus field list: every renamed source column plus
// the computed fields. This is what the registry records for the corpus.
func (d *Documents) Columns() []string {
	out := make([]string, len(d.fieldList))
	copy(out, d.fieldList)
	return out
}

// Count returns the total number of documents in the corpus.
func (d *Documents) Count() int64 {
	return d.pfile.NumRows()
}

// Name returns the corpus name (the lowercased manifest stem).
func (d *Documents) Name() string {
	return d.corpusName
}

// Next returns the next document, or io.EOF after the last one.
func (d *Documents) Next() (engine.Doc, error) {
	row, err := d.nextRow()
	if err != nil {
		return nil, err
	}
	return d.buildDoc(row), nil
}

// nextRow pulls one parquet row, refilling the read buffer and advancing
// row groups as needed.
func (d *Documents) nextRow() (parquet.Row, error) {
	for d.bufIdx >= d.bufLen {
		if d.rows == nil {
			if d.groupIdx >= len(d.groups) {
				return nil, io.EOF
			}
			d.rows = d.groups[d.groupIdx].Rows()
			d.groupIdx++
		}

		n, err := d.rows.ReadRows(d.buf)
		d.bufLen, d.bufIdx = n, 0
		if err == io.EOF {
			_ = d.rows.Close()
			d.rows = nil
			if n == 0 {
				continue
			}
		} else if err != nil {
			return nil, ewberrors.New(ewberrors.ErrCodeInvalidManifest,
				"failed to read corpus parquet rows", err)
		}
		if n == 0 && err == nil {
			continue
		}
	}

	row := d.buf[d.bufIdx]
	d.bufIdx++
	return row, nil
}

// buildDoc converts one parquet row into a flat engine document and
// derives the lemma statistics.
func (d *Documents) buildDoc(row parquet.Row) engine.Doc {
	doc := engine.Doc{}
	lemmaParts := make([]string, 0, len(d.lemmaCols))

	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(d.columns) {
			continue
		}
		col := d.columns[idx]
		value := d.convertValue(col, v)
		doc[col.name] = value

		if col.isLemmas {
			if s, ok := value.(string); ok && s != "" {
				lemmaParts = append(lemmaParts, s)
			}
		}
	}

	// The engine expects string identifiers.
	if id, ok := doc["id"]; ok {
		if _, isString := id.(string); !isString {
			doc["id"] = fmt.Sprintf("%v", id)
		}
	}

	lemmas := strings.Join(lemmaParts, " ")
	tokens := strings.Fields(lemmas)
	doc["all_lemmas"] = lemmas
	doc["nwords_per_doc"] = len(tokens)
	if bow := d.vocab.bagOfWords(tokens); bow != "" {
		doc["bow"] = bow
	}

	return doc
}

// convertValue turns one parquet value into its JSON form: nulls become
// empty strings, timestamps become UTC instants, and every string is
// stripped of XML-illegal code points.
func (d *Documents) convertValue(col column, v parquet.Value) any {
	if v.IsNull() {
		return ""
	}

	switch {
	case col.timestamp:
		return formatInstant(timestampValue(v.Int64(), col.tsUnit))
	case col.dateDays:
		return formatInstant(time.Unix(int64(v.Int32())*24*3600, 0))
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		s := sanitizeXML(string(v.ByteArray()))
		if col.name == "date" {
			return parseInstant(s)
		}
		return s
	default:
		return sanitizeXML(v.String())
	}
}

// timestampValue converts a raw timestamp integer by its declared unit.
func timestampValue(n int64, unit format.TimeUnit) time.Time {
	switch {
	case unit.Millis != nil:
		return time.UnixMilli(n)
	case unit.Nanos != nil:
		return time.Unix(0, n)
	default:
		return time.UnixMicro(n)
	}
}

// Close releases the underlying file handles.
func (d *Documents) Close() error {
	if d.rows != nil {
		_ = d.rows.Close()
		d.rows = nil
	}
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
