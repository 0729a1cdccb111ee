package policyengine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oarkflow/date"
)

// ============================================================================
// USER INGESTION (collaborator)
// ============================================================================

// LoadUsersCSV reads one User per row of a header-driven CSV export.
// The "user_id" (or "id") column becomes the user ID; every other
// column becomes an attribute. Source values are strings; coercion to
// the engine's scalar kinds happens here so the engine never sees a
// type it did not ask for:
//
//   - "true"/"false" (any case) become bool
//   - decimal integers become int64
//   - columns whose header ends in "_date" are parsed with the flexible
//     date parser and stored as unix seconds (int64)
//   - everything else stays a string
func LoadUsersCSV(r io.Reader) ([]*User, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, &ConfigError{Msg: "read csv header", Err: err}
	}
	idCol := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if header[i] == "user_id" || header[i] == "id" {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, &ConfigError{Msg: "csv has no user_id column"}
	}

	var users []*User
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("read csv line %d", line), Err: err}
		}
		u := &User{Attrs: make(Attributes, len(header)-1)}
		for i, raw := range row {
			if i >= len(header) {
				return nil, &ConfigError{Msg: fmt.Sprintf("csv line %d has more fields than the header", line)}
			}
			if i == idCol {
				u.ID = raw
				continue
			}
			v, err := coerceField(header[i], raw)
			if err != nil {
				return nil, &ConfigError{Msg: fmt.Sprintf("csv line %d column %q", line, header[i]), Err: err}
			}
			u.Attrs[header[i]] = v
		}
		if u.ID == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf("csv line %d has an empty user_id", line)}
		}
		users = append(users, u)
	}
	return users, nil
}

func coerceField(name, raw string) (any, error) {
	if strings.HasSuffix(name, "_date") {
		if raw == "" {
			return int64(0), nil
		}
		t, err := date.Parse(raw)
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	return raw, nil
}

// UserIndex is an ID-keyed lookup over loaded users, used by the
// decision endpoint and the CLI.
type UserIndex map[string]*User

func IndexUsers(users []*User) UserIndex {
	ix := make(UserIndex, len(users))
	for _, u := range users {
		ix[u.ID] = u
	}
	return ix
}

func (ix UserIndex) Lookup(id string) (*User, bool) {
	u, ok := ix[id]
	return u, ok
}
