// Package accountconfig models the internal configuration that the federation
// provider keeps inside a calendar account: the mirror of remote folders and
// the memo of the last connection error.
//
// The configuration is stored as an opaque JSON object by the account storage.
// Keys not known to this package are preserved verbatim.
package accountconfig

import (
	"encoding/json"
	"fmt"
)

const (
	keyFolders   = "folders"
	keyLastError = "lastError"
)

type InternalConfig struct {
	Folders   map[string]*RememberedFolder
	LastError *ErrorRecord

	extra map[string]json.RawMessage
}

// Parse decodes an internal configuration; an empty input yields an empty one.
func Parse(raw json.RawMessage) (*InternalConfig, error) {
	c := &InternalConfig{}
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("accountconfig: parsing internal config: %w", err)
	}
	return c, nil
}

func (c *InternalConfig) Marshal() (json.RawMessage, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("accountconfig: encoding internal config: %w", err)
	}
	return b, nil
}

func (c *InternalConfig) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if raw, ok := fields[keyFolders]; ok {
		if err := json.Unmarshal(raw, &c.Folders); err != nil {
			return fmt.Errorf("%s: %w", keyFolders, err)
		}
		delete(fields, keyFolders)
	}
	if raw, ok := fields[keyLastError]; ok {
		if err := json.Unmarshal(raw, &c.LastError); err != nil {
			return fmt.Errorf("%s: %w", keyLastError, err)
		}
		delete(fields, keyLastError)
	}
	for id, f := range c.Folders {
		if f == nil {
			delete(c.Folders, id)
			continue
		}
		f.ID = id
	}
	if len(fields) > 0 {
		c.extra = fields
	}
	return nil
}

func (c *InternalConfig) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(c.extra)+2)
	for k, v := range c.extra {
		fields[k] = v
	}
	if len(c.Folders) > 0 {
		fields[keyFolders] = c.Folders
	}
	if c.LastError != nil {
		fields[keyLastError] = c.LastError
	}
	return json.Marshal(fields)
}
