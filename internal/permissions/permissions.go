// Package permissions lists operator permissions and the admin routes that need them.
package permissions

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// Operator permission names.
const (
	ShopsRead   = "shops.read"
	ShopsCreate = "shops.create"
	ShopsCredit = "shops.credit"
	ShopsBlock  = "shops.block"
	ShopsToken  = "shops.token"
	GiftsRead   = "gifts.read"
	GiftsReset  = "gifts.reset"
	GiftsDelete = "gifts.delete"
)

// Definition binds an admin route to the permission it requires.
type Definition struct {
	Key        string
	Method     string
	Path       string
	Permission string
	Module     string
}

var definitions = []Definition{
	newDefinition("GET", "/v0/admin/shops", ShopsRead, "shops"),
	newDefinition("POST", "/v0/admin/shops", ShopsCreate, "shops"),
	newDefinition("GET", "/v0/admin/shops/:id", ShopsRead, "shops"),
	newDefinition("POST", "/v0/admin/shops/:id/credit", ShopsCredit, "shops"),
	newDefinition("POST", "/v0/admin/shops/:id/block", ShopsBlock, "shops"),
	newDefinition("POST", "/v0/admin/shops/:id/unblock", ShopsBlock, "shops"),
	newDefinition("POST", "/v0/admin/shops/:id/token", ShopsToken, "shops"),
	newDefinition("GET", "/v0/admin/gifts", GiftsRead, "gifts"),
	newDefinition("GET", "/v0/admin/gifts/:id", GiftsRead, "gifts"),
	newDefinition("POST", "/v0/admin/gifts/:id/reset-binding", GiftsReset, "gifts"),
	newDefinition("DELETE", "/v0/admin/gifts/:id", GiftsDelete, "gifts"),
}

func newDefinition(method, path, permission, module string) Definition {
	return Definition{
		Key:        Key(method, path),
		Method:     method,
		Path:       path,
		Permission: permission,
		Module:     module,
	}
}

// Key builds the lookup key for a route.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns every route definition.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes definitions by Key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}

// Known reports whether name is a defined permission.
func Known(name string) bool {
	for _, def := range definitions {
		if def.Permission == name {
			return true
		}
	}
	return false
}

// ParsePermissions decodes a stored JSON list, dropping unknown and duplicate names.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if errUnmarshal := json.Unmarshal(raw, &names); errUnmarshal != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !Known(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EncodePermissions encodes names for storage.
func EncodePermissions(names []string) datatypes.JSON {
	if names == nil {
		names = []string{}
	}
	data, _ := json.Marshal(names)
	return datatypes.JSON(data)
}
