package profile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

//go:embed schema/frontmatter.schema.json
var defaultSchemaJSON []byte

// ErrSchemaInvalid reports a profile schema that cannot be compiled.
var ErrSchemaInvalid = errors.New("profile: schema invalid")

// Issue captures a single profile violation.
type Issue struct {
	Location string
	Message  string
}

// String renders the issue the way audit output and import warnings show it.
func (i Issue) String() string {
	location := strings.TrimSpace(i.Location)
	if location == "" {
		location = "#"
	} else if !strings.HasPrefix(location, "#") {
		location = "#" + location
	}
	if i.Message == "" {
		return location
	}
	return fmt.Sprintf("%s: %s", location, i.Message)
}

// Profile validates front matter against a compiled JSON Schema
// (Draft 2020-12). Violations are reported, never enforced; importers record
// them as warnings and the audit rule catalog surfaces them as issues.
type Profile struct {
	name   string
	schema *jsonschema.Schema
}

// New compiles a profile from raw schema JSON.
func New(name string, schemaJSON []byte) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "frontmatter"
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	return &Profile{name: name, schema: schema}, nil
}

// MustNew compiles a profile and panics on failure; intended for embedded
// schemas validated at build time.
func MustNew(name string, schemaJSON []byte) *Profile {
	profile, err := New(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return profile
}

// Default returns the embedded playbook front matter profile.
func Default() *Profile {
	return MustNew("frontmatter", defaultSchemaJSON)
}

// DefaultSchemaJSON returns a copy of the embedded front matter schema so
// callers can publish it (the API exposes it as an OpenAPI component).
func DefaultSchemaJSON() []byte {
	out := make([]byte, len(defaultSchemaJSON))
	copy(out, defaultSchemaJSON)
	return out
}

// Name identifies the profile in audit issues and logs.
func (p *Profile) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

// Validate checks a raw front matter map and returns every violation. YAML
// decoded values (time.Time, typed slices, interface-keyed maps) are
// normalised into JSON shapes before validation.
func (p *Profile) Validate(meta map[string]any) []Issue {
	if p == nil || p.schema == nil {
		return nil
	}

	payload := normalizeValue(meta)
	if payload == nil {
		payload = map[string]any{}
	}

	err := p.schema.Validate(payload)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return collectIssues(validationErr)
	}
	return []Issue{{Message: err.Error()}}
}

// ValidateDocument implements the front matter validator contract used by
// the importer. Returned strings are bare violation messages; callers prefix
// them with the source path.
func (p *Profile) ValidateDocument(doc *interfaces.Document) []string {
	if p == nil || doc == nil {
		return nil
	}

	issues := p.Validate(doc.FrontMatter.Raw)
	if len(issues) == 0 {
		return nil
	}

	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.String())
	}
	return out
}

// collectIssues flattens the validator's cause tree into leaf issues.
func collectIssues(err *jsonschema.ValidationError) []Issue {
	if err == nil {
		return nil
	}
	issues := []Issue{}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}

// normalizeValue converts YAML decoder output into the JSON value shapes the
// schema validator understands.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	case time.Time:
		return typed.UTC().Format("2006-01-02")
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
