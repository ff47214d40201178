// internal/models/draft.go
package models

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// AgeField is derived from dateOfBirth by the wizard.
	AgeField = "age"
	// AssetsField lists "<field>_url=<url>" for every upload the object
	// store confirmed. Only the upload path writes it.
	AssetsField = "_assets"

	urlSuffix = "_url"
)

// ServerOwned reports whether field is written by the service only and must
// not be taken from client edits.
func ServerOwned(field string) bool {
	return field == AgeField || field == AssetsField || strings.HasSuffix(field, urlSuffix)
}

// FormDraft maps a field name to its current value. Values are string,
// []string or nil.
type FormDraft map[string]interface{}

// NewFormDraft returns an empty draft.
func NewFormDraft() FormDraft {
	return FormDraft{}
}

// String returns the value of field as text. Multi-value fields are joined
// with ", " and missing fields yield "".
func (d FormDraft) String(field string) string {
	switch v := d[field].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case nil:
		return ""
	default:
		switch n := normalizeValue(v).(type) {
		case string:
			return n
		case []string:
			return strings.Join(n, ", ")
		}
		return ""
	}
}

// Trimmed is String with surrounding whitespace removed.
func (d FormDraft) Trimmed(field string) string {
	return strings.TrimSpace(d.String(field))
}

// Has reports whether field holds a non-blank value.
func (d FormDraft) Has(field string) bool {
	return d.Trimmed(field) != ""
}

// Set stores value under field after normalizing it.
func (d FormDraft) Set(field string, value interface{}) {
	d[field] = normalizeValue(value)
}

// MergeEditable copies the client-editable entries of other into d and
// returns the server-owned keys it skipped, sorted.
func (d FormDraft) MergeEditable(other map[string]interface{}) []string {
	var skipped []string
	for k, v := range other {
		if ServerOwned(k) {
			skipped = append(skipped, k)
			continue
		}
		d.Set(k, v)
	}
	sort.Strings(skipped)
	return skipped
}

// RecordAsset attaches url under <field>_url and marks it as a confirmed
// upload, replacing any earlier upload of the same field.
func (d FormDraft) RecordAsset(field, url string) {
	key := URLFieldFor(field)
	entries := []string{}
	for _, e := range d.assets() {
		if k, _, _ := strings.Cut(e, "="); k != key {
			entries = append(entries, e)
		}
	}
	d[AssetsField] = append(entries, key+"="+url)
	d[key] = url
}

// ConfirmedURL returns the <field>_url value when it matches a confirmed
// upload of that field, and "" otherwise.
func (d FormDraft) ConfirmedURL(field string) string {
	key := URLFieldFor(field)
	url := d.Trimmed(key)
	if url == "" {
		return ""
	}
	for _, e := range d.assets() {
		if e == key+"="+url {
			return url
		}
	}
	return ""
}

// DropUnconfirmedURLs deletes every <field>_url entry without a matching
// confirmed upload and returns the deleted keys, sorted.
func (d FormDraft) DropUnconfirmedURLs() []string {
	var dropped []string
	for k := range d {
		if !strings.HasSuffix(k, urlSuffix) {
			continue
		}
		if d.ConfirmedURL(strings.TrimSuffix(k, urlSuffix)) == "" {
			dropped = append(dropped, k)
		}
	}
	for _, k := range dropped {
		delete(d, k)
	}
	sort.Strings(dropped)
	return dropped
}

func (d FormDraft) assets() []string {
	switch v := d[AssetsField].(type) {
	case []string:
		return v
	case []interface{}:
		list, _ := normalizeValue(v).([]string)
		return list
	}
	return nil
}

// Clone returns a deep copy of d.
func (d FormDraft) Clone() FormDraft {
	out := make(FormDraft, len(d))
	for k, v := range d {
		if list, ok := v.([]string); ok {
			cp := make([]string, len(list))
			copy(cp, list)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Normalize rewrites decoded JSON values into the draft's value set.
// Arrays become []string; numbers and booleans become their text form.
func (d FormDraft) Normalize() FormDraft {
	for k, v := range d {
		d[k] = normalizeValue(v)
	}
	return d
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			if s, ok := normalizeValue(item).(string); ok {
				out = append(out, s)
			}
		}
		return out
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		if s, ok := val.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}
