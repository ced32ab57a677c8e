package zotero

import (
	"encoding/json"
	"fmt"
	"strings"

	"zotero-sync/core/utils"

	"github.com/go-playground/validator/v10"
)

const (
	// PageLimit is the maximum number of entities the remote returns per call.
	PageLimit = 100

	// WriteChunkSize is the maximum number of objects accepted per write call.
	WriteChunkSize = 50

	// TagDeleteLimit is the maximum number of tags deleted per call.
	TagDeleteLimit = 50
)

var validate = validator.New()

// LibraryType is the URL segment of a library kind.
type LibraryType string

const (
	UserLibrary  LibraryType = "users"
	GroupLibrary LibraryType = "groups"
)

// Library identifies one remote library.
type Library struct {
	Type LibraryType `json:"type" validate:"required,oneof=users groups"`
	ID   string      `json:"id" validate:"required,numeric"`
	Path string      `json:"path"`
}

// NewLibrary builds a validated Library and derives its path.
func NewLibrary(kind LibraryType, id string) (Library, error) {
	lib := Library{Type: kind, ID: id, Path: string(kind) + "/" + id}
	if err := validate.Struct(lib); err != nil {
		return Library{}, &ValidationError{Field: "library", Value: lib.Path, Err: err}
	}
	return lib, nil
}

// ParseLibrary parses a path such as "users/111" or "groups/4567".
func ParseLibrary(path string) (Library, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return Library{}, &ValidationError{Field: "library", Value: path, Err: fmt.Errorf("expected {type}/{id}")}
	}
	return NewLibrary(LibraryType(parts[0]), parts[1])
}

// LibraryRef is the library block embedded in every remote entity.
type LibraryRef struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// Entity is a versioned record of a library (item, note, attachment, annotation).
type Entity struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Library LibraryRef     `json:"library"`
	Links   map[string]any `json:"links,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Data    map[string]any `json:"data"`

	// HasCitekey is the derived cross-reference annotation. Nil means not computed yet.
	HasCitekey *bool `json:"has_citekey,omitempty"`
}

// ItemType returns data.itemType, or "" when absent.
func (e Entity) ItemType() string {
	if t, ok := e.Data["itemType"].(string); ok {
		return t
	}
	return ""
}

// Tags returns the entity's data.tags as records. Entries without a tag string are skipped.
func (e Entity) Tags() []TagRecord {
	raw, ok := e.Data["tags"].([]any)
	if !ok {
		if typed, ok := e.Data["tags"].([]TagRecord); ok {
			return append([]TagRecord(nil), typed...)
		}
		return nil
	}
	out := make([]TagRecord, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		tag, ok := m["tag"].(string)
		if !ok {
			continue
		}
		out = append(out, TagRecord{Tag: tag, Type: TagType(utils.ToInt(m["type"]))})
	}
	return out
}

// DecodeEntities parses raw page payloads into entities.
func DecodeEntities(raw []json.RawMessage) ([]Entity, error) {
	out := make([]Entity, 0, len(raw))
	for i, r := range raw {
		var e Entity
		if err := json.Unmarshal(r, &e); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("entity[%d]", i), Err: err}
		}
		if e.Key == "" {
			if k, ok := e.Data["key"].(string); ok {
				e.Key = k
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// DeletionSet is the response of the deleted endpoint.
type DeletionSet struct {
	Collections []string `json:"collections"`
	Items       []string `json:"items"`
	Searches    []string `json:"searches"`
	Tags        []string `json:"tags"`
	Settings    []string `json:"settings"`
}

// TagType distinguishes manual tags from automatically assigned ones.
type TagType int

const (
	TagExplicit  TagType = 0
	TagAutomatic TagType = 1
)

// TagRecord is one tag as reported by the remote.
type TagRecord struct {
	Tag  string  `json:"tag"`
	Type TagType `json:"type"`
}

// tagPayload mirrors one entry of the tags endpoint.
type tagPayload struct {
	Tag  *string `json:"tag" validate:"required"`
	Meta struct {
		Type     *int `json:"type" validate:"required,min=0,max=1"`
		NumItems int  `json:"numItems"`
	} `json:"meta"`
}

// DecodeTags parses raw tag endpoint payloads into validated records.
func DecodeTags(raw []json.RawMessage) ([]TagRecord, error) {
	out := make([]TagRecord, 0, len(raw))
	for i, r := range raw {
		var p tagPayload
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tag[%d]", i), Err: err}
		}
		if err := validate.Struct(p); err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tag[%d]", i), Value: string(r), Err: err}
		}
		out = append(out, TagRecord{Tag: *p.Tag, Type: TagType(*p.Meta.Type)})
	}
	return out, nil
}

// WriteRequest is a partial entity update. It must carry "key" and "version".
type WriteRequest map[string]any

type writeHeader struct {
	Key     string `validate:"required"`
	Version *int   `validate:"required,min=0"`
}

// Validate checks the mandatory key and version fields.
func (w WriteRequest) Validate() error {
	h := writeHeader{}
	if k, ok := w["key"].(string); ok {
		h.Key = k
	}
	if v, ok := w["version"]; ok && v != nil {
		n := utils.ToInt(v)
		h.Version = &n
	}
	if err := validate.Struct(h); err != nil {
		return &ValidationError{Field: "write", Value: fmt.Sprintf("%v", w["key"]), Err: err}
	}
	return nil
}

// FailedWrite describes one rejected item of a write chunk.
type FailedWrite struct {
	Key     string `json:"key"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteOutcome is the per-index classification returned for one write chunk.
// Indices are the positions inside the chunk, as strings.
type WriteOutcome struct {
	Successful map[string]Entity      `json:"successful"`
	Success    map[string]string      `json:"success"`
	Unchanged  map[string]string      `json:"unchanged"`
	Failed     map[string]FailedWrite `json:"failed"`
}

func (o *WriteOutcome) normalize() {
	if o.Successful == nil {
		o.Successful = map[string]Entity{}
	}
	if o.Success == nil {
		o.Success = map[string]string{}
	}
	if o.Unchanged == nil {
		o.Unchanged = map[string]string{}
	}
	if o.Failed == nil {
		o.Failed = map[string]FailedWrite{}
	}
}

// ChunkStatus is the settlement state of one write chunk.
type ChunkStatus string

const (
	ChunkFulfilled ChunkStatus = "fulfilled"
	ChunkRejected  ChunkStatus = "rejected"
)

// ChunkResult is the settled result of one write chunk.
type ChunkResult struct {
	Index   int            `json:"index"`
	Status  ChunkStatus    `json:"status"`
	Payload []WriteRequest `json:"-"`
	Outcome *WriteOutcome  `json:"value,omitempty"`
	Err     error          `json:"-"`
}

// MarshalJSON adds the rejection reason of a failed chunk.
func (r ChunkResult) MarshalJSON() ([]byte, error) {
	type plain ChunkResult
	out := struct {
		plain
		Reason string `json:"reason,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Reason = r.Err.Error()
	}
	return json.Marshal(out)
}
