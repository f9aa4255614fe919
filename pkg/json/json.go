// Package json provides JSON serialization helpers backed by goccy/go-json
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is a JSON number literal kept as text
type Number = gojson.Number

// RawMessage is a raw encoded JSON value
type RawMessage = gojson.RawMessage

// Delim is an object or array delimiter token
type Delim = gojson.Delim

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewDecoder returns a decoder that keeps numbers as Number so integers
// and floats can be told apart.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// DecodeObject decodes a single JSON object, keeping numbers as Number.
func DecodeObject(data []byte) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := NewDecoder(bytes.NewReader(data)).Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// NewEncoder returns an encoder that does not escape HTML
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// ObjectWriter writes a single JSON object field by field, keeping
// the order in which fields are added.
type ObjectWriter struct {
	buf    []byte
	fields int
}

// NewObjectWriter creates an ObjectWriter with the given initial capacity
func NewObjectWriter(initialSize int) *ObjectWriter {
	return &ObjectWriter{buf: make([]byte, 0, initialSize)}
}

// WriteField appends "key":value to the object
func (w *ObjectWriter) WriteField(key string, value interface{}) error {
	k, err := gojson.MarshalWithOption(key, gojson.DisableHTMLEscape())
	if err != nil {
		return err
	}
	v, err := gojson.MarshalWithOption(value, gojson.DisableHTMLEscape())
	if err != nil {
		return err
	}
	if w.fields == 0 {
		w.buf = append(w.buf, '{')
	} else {
		w.buf = append(w.buf, ',')
	}
	w.buf = append(w.buf, k...)
	w.buf = append(w.buf, ':')
	w.buf = append(w.buf, v...)
	w.fields++
	return nil
}

// Bytes returns the closed JSON object
func (w *ObjectWriter) Bytes() []byte {
	if w.fields == 0 {
		return append(w.buf[:0], '{', '}')
	}
	return append(w.buf, '}')
}

// Reset resets the writer for reuse
func (w *ObjectWriter) Reset() {
	w.buf = w.buf[:0]
	w.fields = 0
}
