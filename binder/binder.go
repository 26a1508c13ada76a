// Package binder populates request structs from the JSON body, chi path
// parameters and the query string.
package binder

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
)

var (
	// ErrNotApplicable tells the caller to skip this binder for the request.
	ErrNotApplicable = errors.New("binder.not_applicable")

	ErrUnsupportedMediaType = errors.New("binder.unsupported_media_type")
	ErrInvalidJSON          = errors.New("binder.invalid_json")
	ErrInvalidPath          = errors.New("binder.invalid_path")
	ErrInvalidQuery         = errors.New("binder.invalid_query")
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// JSON decodes the request body. Requests without a body are skipped so the
// same struct can be used for GET and PATCH routes.
func JSON() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			return ErrNotApplicable
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: expected application/json", ErrUnsupportedMediaType)
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			}
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		return nil
	}
}

// Path binds fields tagged `path:"name"` using extractor, typically chi.URLParam.
func Path(extractor func(r *http.Request, key string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "path", ErrInvalidPath, func(key string) (string, bool) {
			val := extractor(r, key)
			return val, val != ""
		})
	}
}

// Query binds fields tagged `query:"name"` from the URL query string.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		q := r.URL.Query()
		return bindTagged(v, "query", ErrInvalidQuery, func(key string) (string, bool) {
			if !q.Has(key) {
				return "", false
			}
			return q.Get(key), true
		})
	}
}

var textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()

func bindTagged(v any, tag string, sentinel error, lookup func(string) (string, bool)) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a pointer to struct", sentinel)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rt.NumField() {
		sf := rt.Field(i)
		key := sf.Tag.Get(tag)
		if key == "" || key == "-" || !sf.IsExported() {
			continue
		}
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(rv.Field(i), raw); err != nil {
			return fmt.Errorf("%w: %s: %v", sentinel, key, err)
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	if f.CanAddr() && f.Addr().Type().Implements(textUnmarshaler) {
		return f.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", f.Type())
	}
	return nil
}
