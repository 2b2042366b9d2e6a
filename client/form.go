package client

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"sort"
	"strconv"
)

// File is an uploaded part. Content is held in memory so the form can be
// replayed after a token refresh.
type File struct {
	Name    string
	Content []byte
}

type formField struct {
	name  string
	value string
	file  *File
}

// Form is a multipart/form-data body.
type Form struct {
	fields []formField
}

func NewForm() *Form {
	return &Form{}
}

// BuildForm converts values into a form. Nil and empty string values are
// skipped, slices become repeated fields, booleans are "true"/"false".
// Keys are added in sorted order.
func BuildForm(values map[string]any) *Form {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := NewForm()
	for _, k := range keys {
		f.addValue(k, values[k])
	}
	return f
}

func (f *Form) Add(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

func (f *Form) AddFile(name string, file File) *Form {
	f.fields = append(f.fields, formField{name: name, file: &file})
	return f
}

func (f *Form) Len() int { return len(f.fields) }

func (f *Form) addValue(name string, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		if val != "" {
			f.Add(name, val)
		}
	case bool:
		f.Add(name, strconv.FormatBool(val))
	case File:
		f.AddFile(name, val)
	case *File:
		if val != nil {
			f.AddFile(name, *val)
		}
	case []string:
		for _, item := range val {
			f.addValue(name, item)
		}
	case []File:
		for _, item := range val {
			f.AddFile(name, item)
		}
	case []any:
		for _, item := range val {
			f.addValue(name, item)
		}
	default:
		f.Add(name, fmt.Sprint(val))
	}
}

// Encode renders the body and its content type, boundary included.
func (f *Form) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, field := range f.fields {
		if field.file == nil {
			if err := w.WriteField(field.name, field.value); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", field.name, err)
			}
			continue
		}
		part, err := w.CreateFormFile(field.name, field.file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", field.name, err)
		}
		if _, err := part.Write(field.file.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", field.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
