package tools

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SnapshotVersion is the version of the snapshot document format
const SnapshotVersion = 1

// Snapshot is the tool identity with its immutable configuration,
// persisted for agent replay.
type Snapshot struct {
	Name    string          `json:"name"`
	Options json.RawMessage `json:"options,omitempty"`
}

// NewSnapshot returns a snapshot of the tool options
func NewSnapshot(name string, options any) (*Snapshot, error) {
	s := &Snapshot{Name: name}
	if options != nil {
		js, err := json.Marshal(options)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal %s options", name)
		}
		s.Options = js
	}
	return s, nil
}

// DecodeOptions decodes the snapshot options into v
func (s *Snapshot) DecodeOptions(v any) error {
	if len(s.Options) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Options, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s options", s.Name)
	}
	return nil
}

// Marshal returns the snapshot document
func (s *Snapshot) Marshal() ([]byte, error) {
	doc, err := sjson.SetBytes(nil, "version", SnapshotVersion)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	doc, err = sjson.SetBytes(doc, "name", s.Name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(s.Options) > 0 {
		doc, err = sjson.SetRawBytes(doc, "options", s.Options)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return doc, nil
}

// ParseSnapshot parses the snapshot document
func ParseSnapshot(doc []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("invalid snapshot: malformed JSON")
	}
	if v := gjson.GetBytes(doc, "version").Int(); v != SnapshotVersion {
		return nil, errors.Newf("invalid snapshot: unsupported version %d", v)
	}
	name := gjson.GetBytes(doc, "name").String()
	if name == "" {
		return nil, errors.New("invalid snapshot: missing name")
	}

	s := &Snapshot{Name: name}
	if opts := gjson.GetBytes(doc, "options"); opts.Exists() {
		s.Options = json.RawMessage(opts.Raw)
	}
	return s, nil
}
