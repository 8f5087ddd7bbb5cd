package candidate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/facematch/internal/candidate"
	"github.com/victornm/facematch/internal/domain"
)

func TestParse(t *testing.T) {
	type (
		inputs struct {
			doc    string
			format candidate.Format
		}

		outputs struct {
			cs  []domain.Candidate
			err error
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"json document": {
			arrange: func() inputs {
				return inputs{
					format: candidate.FormatJSON,
					doc: `{"people": [
						{"id": "1", "firstName": "Ada", "lastName": "Lovelace", "image": "ada.jpg", "gender": "f"},
						{"id": "2", "firstName": "Alan", "lastName": "Turing", "image": "alan.jpg", "gender": "m"}
					]}`,
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.cs, 2)
				assert.Equal(t, domain.Candidate{
					ID: "1", FirstName: "Ada", LastName: "Lovelace", Image: "ada.jpg", Gender: "f",
				}, out.cs[0])
			},
		},
		"yaml document": {
			arrange: func() inputs {
				return inputs{
					format: candidate.FormatYAML,
					doc: `
people:
  - id: "1"
    firstName: Ada
    lastName: Lovelace
    image: ada.jpg
    gender: f
  - id: "2"
    firstName: Grace
    lastName: Hopper
    image: grace.jpg
    gender: f
`,
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				require.Len(t, out.cs, 2)
				assert.Equal(t, "Hopper", out.cs[1].LastName)
			},
		},
		"missing field": {
			arrange: func() inputs {
				return inputs{
					format: candidate.FormatJSON,
					doc: `{"people": [
						{"id": "1", "firstName": "Ada", "image": "ada.jpg", "gender": "f"},
						{"id": "2", "firstName": "Alan", "lastName": "Turing", "image": "alan.jpg", "gender": "m"}
					]}`,
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.ErrorIs(t, out.err, domain.ErrData)
				assert.Contains(t, out.err.Error(), "LastName")
			},
		},
		"duplicate id": {
			arrange: func() inputs {
				return inputs{
					format: candidate.FormatJSON,
					doc: `{"people": [
						{"id": "1", "firstName": "Ada", "lastName": "Lovelace", "image": "ada.jpg", "gender": "f"},
						{"id": "1", "firstName": "Alan", "lastName": "Turing", "image": "alan.jpg", "gender": "m"}
					]}`,
				}
			},
			assert: func(t *testing.T, out outputs) {
				require.Error(t, out.err)
				assert.ErrorIs(t, out.err, domain.ErrData)
			},
		},
		"too few candidates": {
			arrange: func() inputs {
				return inputs{
					format: candidate.FormatJSON,
					doc:    `{"people": [{"id": "1", "firstName": "Ada", "lastName": "Lovelace", "image": "ada.jpg", "gender": "f"}]}`,
				}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ErrorIs(t, out.err, domain.ErrData)
			},
		},
		"empty document": {
			arrange: func() inputs {
				return inputs{format: candidate.FormatJSON, doc: `{}`}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ErrorIs(t, out.err, domain.ErrData)
			},
		},
		"unknown field": {
			arrange: func() inputs {
				return inputs{format: candidate.FormatYAML, doc: "folks: []\n"}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ErrorIs(t, out.err, domain.ErrData)
			},
		},
		"not a document": {
			arrange: func() inputs {
				return inputs{format: candidate.FormatJSON, doc: `[`}
			},
			assert: func(t *testing.T, out outputs) {
				assert.ErrorIs(t, out.err, domain.ErrData)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			in := tc.arrange()

			var out outputs
			out.cs, out.err = candidate.Parse([]byte(in.doc), in.format)

			tc.assert(t, out)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "people.yml")
	require.NoError(t, os.WriteFile(p, []byte(`
people:
  - {id: a, firstName: Ada, lastName: Lovelace, image: a.jpg, gender: f}
  - {id: b, firstName: Alan, lastName: Turing, image: b.jpg, gender: m}
  - {id: c, firstName: Grace, lastName: Hopper, image: c.jpg, gender: f}
`), 0o600))

	cs, err := candidate.LoadFile(p)
	require.NoError(t, err)
	assert.Len(t, cs, 3)
	assert.Equal(t, map[string]int{"f": 2, "m": 1}, candidate.Genders(cs))

	_, err = candidate.LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_SampleData(t *testing.T) {
	cs, err := candidate.LoadFile(filepath.Join("..", "..", "testdata", "people.json"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cs), 2)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, candidate.FormatYAML, candidate.FormatOf("a/b.YAML"))
	assert.Equal(t, candidate.FormatYAML, candidate.FormatOf("b.yml"))
	assert.Equal(t, candidate.FormatJSON, candidate.FormatOf("b.json"))
	assert.Equal(t, candidate.FormatJSON, candidate.FormatOf("b"))
}
