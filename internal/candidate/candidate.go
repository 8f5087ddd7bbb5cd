// Package candidate loads the candidate universe from a JSON or YAML file.
package candidate

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/victornm/facematch/internal/domain"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type file struct {
	People []domain.Candidate `json:"people" yaml:"people" validate:"required,min=2,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads candidates from path. The format follows the extension: .yaml and .yml are
// YAML, anything else is JSON.
func LoadFile(path string) ([]domain.Candidate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("candidate: read %s: %w", path, err)
	}

	cs, err := Parse(b, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("candidate: %s: %w", path, err)
	}

	return cs, nil
}

func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates a candidate document. Every problem is reported as a data
// error.
func Parse(b []byte, format Format) ([]domain.Candidate, error) {
	var f file

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, domain.DataError("decode yaml: %v", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, domain.DataError("decode json: %v", err)
		}
	default:
		return nil, domain.DataError("unknown format %q", format)
	}

	if err := validate.Struct(f); err != nil {
		return nil, domain.DataError("invalid candidates: %s", describe(err))
	}

	seen := make(map[string]struct{}, len(f.People))
	for _, c := range f.People {
		if _, ok := seen[c.ID]; ok {
			return nil, domain.DataError("duplicate candidate id: %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	return f.People, nil
}

// Genders counts candidates per gender. A gender with a single candidate forces decoy
// fallbacks.
func Genders(cs []domain.Candidate) map[string]int {
	m := make(map[string]int)
	for _, c := range cs {
		m[c.Gender]++
	}
	return m
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}

	return strings.Join(msgs, "; ")
}
