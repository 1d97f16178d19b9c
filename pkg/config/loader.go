package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/yoloplan/pkg/engine"
)

// Loader reads problem documents and checks them against the document schema.
type Loader struct {
	cue      *cue.Context
	schema   cue.Value
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewLoader compiles the document schema and returns a loader.
func NewLoader(logger zerolog.Logger) (*Loader, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(documentSchema, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	schema := root.LookupPath(cue.ParsePath("#Document"))
	if !schema.Exists() {
		return nil, fmt.Errorf("document schema has no #Document definition")
	}

	return &Loader{
		cue:      ctx,
		schema:   schema,
		validate: validator.New(),
		logger:   logger.With().Str("component", "problem-loader").Logger(),
	}, nil
}

// Load reads the document at path, choosing the format from its extension.
func (l *Loader) Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, engine.NewConfigurationError("cannot load problem document", err).
			WithCode(engine.ErrCodeInvalidProblem).
			WithOperation("load").
			WithDetail("path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewConfigurationError("cannot read problem document", err).
			WithCode(engine.ErrCodeInvalidProblem).
			WithOperation("load").
			WithDetail("path", path)
	}

	return l.Parse(data, format, path)
}

// Parse decodes and checks a document. All issues found are reported together
// in a *DocumentError wrapped in a configuration error.
func (l *Loader) Parse(data []byte, format Format, filename string) (*Document, error) {
	var (
		doc    *Document
		issues []ValidationError
	)

	switch format {
	case FormatYAML:
		doc, issues = l.decodeYAML(data, filename)
	case FormatJSON:
		doc, issues = l.decodeJSON(data, filename)
	case FormatCUE:
		doc, issues = l.decodeCUE(data, filename)
	default:
		issues = []ValidationError{{File: filename, Message: fmt.Sprintf("unsupported format %q", format)}}
	}

	if len(issues) == 0 {
		issues = append(issues, l.checkStruct(doc, filename)...)
		if format != FormatCUE {
			issues = append(issues, l.checkSchema(doc, filename)...)
		}
		if _, err := doc.Planner.TimeoutDuration(); err != nil {
			issues = append(issues, ValidationError{File: filename, Path: "planner.timeout", Message: err.Error()})
		}
	}

	if len(issues) > 0 {
		l.logger.Debug().Str("file", filename).Int("issues", len(issues)).Msg("Problem document rejected")
		return nil, engine.NewConfigurationError("invalid problem document", &DocumentError{File: filename, Issues: issues}).
			WithCode(engine.ErrCodeInvalidProblem).
			WithOperation("load").
			WithDetail("path", filename)
	}

	doc.Source = filename
	doc.Format = format
	return doc, nil
}

func (l *Loader) decodeYAML(data []byte, filename string) (*Document, []ValidationError) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, []ValidationError{{File: filename, Message: "empty document"}}
		}
		return nil, yamlIssues(err, filename)
	}
	return &doc, nil
}

// yamlIssues splits a yaml error into one issue per reported line.
func yamlIssues(err error, filename string) []ValidationError {
	var msgs []string
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		msgs = typeErr.Errors
	} else {
		msgs = []string{strings.TrimPrefix(err.Error(), "yaml: ")}
	}

	issues := make([]ValidationError, 0, len(msgs))
	for _, msg := range msgs {
		issue := ValidationError{File: filename, Message: msg}
		var line int
		if n, _ := fmt.Sscanf(msg, "line %d:", &line); n == 1 {
			issue.Line = line
			issue.Message = strings.TrimSpace(msg[strings.Index(msg, ":")+1:])
		}
		issues = append(issues, issue)
	}
	return issues
}

func (l *Loader) decodeJSON(data []byte, filename string) (*Document, []ValidationError) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		issue := ValidationError{File: filename, Message: err.Error()}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			issue.Line, issue.Column = lineColumn(data, syntaxErr.Offset)
		case errors.As(err, &typeErr):
			issue.Line, issue.Column = lineColumn(data, typeErr.Offset)
			issue.Path = typeErr.Field
		}
		return nil, []ValidationError{issue}
	}
	return &doc, nil
}

// lineColumn converts a byte offset into a 1-indexed line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	prefix := data[:offset]
	line := bytes.Count(prefix, []byte("\n")) + 1
	column := len(prefix) - bytes.LastIndexByte(prefix, '\n')
	return line, column
}

func (l *Loader) decodeCUE(data []byte, filename string) (*Document, []ValidationError) {
	val := l.cue.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err, filename)
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err, filename)
	}

	raw, err := val.MarshalJSON()
	if err != nil {
		return nil, convertCUEErrors(err, filename)
	}
	return l.decodeJSON(raw, filename)
}

// checkSchema re-encodes a decoded document and unifies it with the schema.
func (l *Loader) checkSchema(doc *Document, filename string) []ValidationError {
	raw, err := json.Marshal(doc)
	if err != nil {
		return []ValidationError{{File: filename, Message: fmt.Sprintf("failed to encode document: %v", err)}}
	}

	val := l.schema.Unify(l.cue.CompileBytes(raw))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		issues := convertCUEErrors(err, filename)
		// Positions refer to the re-encoded JSON, not the source file.
		for i := range issues {
			issues[i].Line, issues[i].Column = 0, 0
		}
		return issues
	}
	return nil
}

func (l *Loader) checkStruct(doc *Document, filename string) []ValidationError {
	err := l.validate.Struct(doc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{File: filename, Message: err.Error()}}
	}

	issues := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, ValidationError{
			File:    filename,
			Path:    strings.TrimPrefix(fe.Namespace(), "Document."),
			Message: fmt.Sprintf("failed %s validation", fe.Tag()),
		})
	}
	return issues
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func convertCUEErrors(err error, filename string) []ValidationError {
	var issues []ValidationError
	for _, e := range cueerrors.Errors(err) {
		issue := ValidationError{File: filename}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			if pos[0].Filename() != "" {
				issue.File = pos[0].Filename()
			}
			issue.Line = pos[0].Line()
			issue.Column = pos[0].Column()
		}
		issue.Path = strings.Join(e.Path(), ".")
		format, args := e.Msg()
		issue.Message = fmt.Sprintf(format, args...)
		issues = append(issues, issue)
	}
	if len(issues) == 0 {
		issues = append(issues, ValidationError{File: filename, Message: err.Error()})
	}
	return issues
}
