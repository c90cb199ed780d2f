package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/c360studio/qualcoder/matrix"
)

const jsonIndent = "    "

// WriteAggregated writes the question -> codes object with questions in keys
// order.
func WriteAggregated(w io.Writer, keys []string, vocabularies map[string][]string) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeEntry(&buf, key, nonNil(vocabularies[key])); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return writeIndented(w, buf.Bytes())
}

// WriteInterviewCodes writes the interview -> question -> codes object.
// Interviews follow ids order; questions inside each interview follow keys
// order and are omitted when the interview has no entry for them.
func WriteInterviewCodes(w io.Writer, ids, keys []string, assignments map[string]map[string][]string) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, id); err != nil {
			return err
		}
		buf.WriteByte('{')
		n := 0
		for _, key := range keys {
			codes, ok := assignments[id][key]
			if !ok {
				continue
			}
			if n > 0 {
				buf.WriteByte(',')
			}
			if err := writeEntry(&buf, key, nonNil(codes)); err != nil {
				return err
			}
			n++
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return writeIndented(w, buf.Bytes())
}

// ReadAggregated reads an aggregated codes object, returning its keys in
// document order.
func ReadAggregated(r io.Reader) ([]string, map[string][]string, error) {
	dec := json.NewDecoder(r)
	vocabularies := make(map[string][]string)
	keys, err := readObject(dec, func(key string) error {
		var codes []string
		if err := dec.Decode(&codes); err != nil {
			return fmt.Errorf("codes for %q: %w", key, err)
		}
		vocabularies[key] = codes
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read aggregated codes: %w", err)
	}
	return keys, vocabularies, nil
}

// ReadInterviewCodes reads an interview codes object. It returns interview ids
// in document order and the question keys in first-seen order.
func ReadInterviewCodes(r io.Reader) ([]string, []string, map[string]map[string][]string, error) {
	dec := json.NewDecoder(r)
	assignments := make(map[string]map[string][]string)
	var keys []string
	seen := make(map[string]bool)

	ids, err := readObject(dec, func(id string) error {
		byKey := make(map[string][]string)
		_, err := readObject(dec, func(key string) error {
			var codes []string
			if err := dec.Decode(&codes); err != nil {
				return fmt.Errorf("codes for %q/%q: %w", id, key, err)
			}
			byKey[key] = nonNil(codes)
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
			return nil
		})
		assignments[id] = byKey
		return err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read interview codes: %w", err)
	}
	return ids, keys, assignments, nil
}

// LoadSource reads both JSON artifacts from disk into a materializer source.
func LoadSource(aggregatedPath, interviewsPath string) (matrix.Source, error) {
	af, err := os.Open(aggregatedPath)
	if err != nil {
		return matrix.Source{}, err
	}
	defer af.Close()
	keys, vocabularies, err := ReadAggregated(bufio.NewReader(af))
	if err != nil {
		return matrix.Source{}, fmt.Errorf("%s: %w", aggregatedPath, err)
	}

	inf, err := os.Open(interviewsPath)
	if err != nil {
		return matrix.Source{}, err
	}
	defer inf.Close()
	ids, _, assignments, err := ReadInterviewCodes(bufio.NewReader(inf))
	if err != nil {
		return matrix.Source{}, fmt.Errorf("%s: %w", interviewsPath, err)
	}

	return matrix.Source{
		Keys:         keys,
		InterviewIDs: ids,
		Vocabularies: vocabularies,
		Assignments:  assignments,
	}, nil
}

// readObject walks one JSON object, calling fn for every key with the decoder
// positioned on the value.
func readObject(dec *json.Decoder, fn func(key string) error) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return keys, nil
}

func writeEntry(buf *bytes.Buffer, key string, value any) error {
	if err := writeKey(buf, key); err != nil {
		return err
	}
	return encode(buf, value)
}

func writeKey(buf *bytes.Buffer, key string) error {
	if err := encode(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

// encode marshals v without HTML escaping and without the trailing newline.
func encode(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

func writeIndented(w io.Writer, compact []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", jsonIndent); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func nonNil(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
