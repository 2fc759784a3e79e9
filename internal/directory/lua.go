package directory

import (
	"context"
	"fmt"
	"iter"
	"time"

	lua "github.com/yuin/gopher-lua"

	luaservices "github.com/project-kessel/orgaud/internal/lua"
	"github.com/project-kessel/orgaud/internal/service"
)

// membershipsFunc is the global function a directory script must define
const membershipsFunc = "memberships"

// LuaDirectory executes a Lua script to enumerate memberships
// The script has access to http, config, and json services
type LuaDirectory struct {
	script       string
	configSource luaservices.ConfigSource
	httpConfig   luaservices.HTTPServiceConfig
}

// LuaDirectoryConfig configures a Lua directory
type LuaDirectoryConfig struct {
	// Script is the Lua script to execute
	// The script must define a function called 'memberships' that takes a
	// subject table {id, username, attributes} and returns a list of
	// organization tables {id, name, attributes}. Attribute values may be a
	// string or a list of strings.
	//
	// Example:
	//   function memberships(subject)
	//     local response, err = http.get(config.get("base_url") .. "/users/" .. subject.id .. "/organizations")
	//     if response == nil then error(err) end
	//     if response.status ~= 200 then return {} end
	//     return json.decode(response.body)
	//   end
	Script string

	// ConfigSource provides configuration values available to the script via config.get()
	// If nil, an empty MapConfigSource will be used
	ConfigSource luaservices.ConfigSource

	// HTTPConfig provides HTTP service configuration including timeout, transport, etc.
	// If nil, default HTTP config (30s timeout) will be used
	HTTPConfig *luaservices.HTTPServiceConfig
}

// NewLuaDirectory creates a new Lua directory
func NewLuaDirectory(config LuaDirectoryConfig) (*LuaDirectory, error) {
	if config.Script == "" {
		return nil, fmt.Errorf("script is required")
	}

	if config.ConfigSource == nil {
		config.ConfigSource = luaservices.NewMapConfigSource(nil)
	}

	// Validate that the script defines the memberships function
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(config.Script); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}

	if L.GetGlobal(membershipsFunc).Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a '%s' function", membershipsFunc)
	}

	httpConfig := luaservices.HTTPServiceConfig{Timeout: 30 * time.Second}
	if config.HTTPConfig != nil {
		httpConfig = *config.HTTPConfig
	}

	return &LuaDirectory{
		script:       config.Script,
		configSource: config.ConfigSource,
		httpConfig:   httpConfig,
	}, nil
}

// MembershipsOf implements service.Directory
// The script runs when the sequence is first traversed.
func (d *LuaDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	return func(yield func(*service.Organization, error) bool) {
		orgs, err := d.run(ctx, subject)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, org := range orgs {
			if !yield(org, nil) {
				return
			}
		}
	}
}

func (d *LuaDirectory) run(ctx context.Context, subject service.Subject) ([]*service.Organization, error) {
	// Create a new Lua state for this request
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	luaservices.NewHTTPServiceWithConfig(d.httpConfig).WithContext(ctx).Register(L)
	luaservices.NewConfigService(d.configSource).Register(L)
	luaservices.NewJSONService().Register(L)

	if err := L.DoString(d.script); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(membershipsFunc),
		NRet:    1,
		Protect: true,
	}, subjectToLua(L, subject)); err != nil {
		return nil, fmt.Errorf("script execution failed: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	if ret.Type() == lua.LTNil {
		return nil, nil
	}

	list, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s function must return a table or nil, got %s", membershipsFunc, ret.Type())
	}

	orgs := make([]*service.Organization, 0, list.MaxN())
	for i := 1; i <= list.MaxN(); i++ {
		org, err := luaToOrganization(list.RawGetInt(i))
		if err != nil {
			return nil, fmt.Errorf("organization %d: %w", i, err)
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// subjectToLua converts a subject to a Lua table
func subjectToLua(L *lua.LState, subject service.Subject) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "id", lua.LString(subject.ID))
	if subject.Username != "" {
		L.SetField(tbl, "username", lua.LString(subject.Username))
	}
	L.SetField(tbl, "attributes", luaservices.GoToLua(L, subject.Attributes))
	return tbl
}

// luaToOrganization converts an organization table returned by the script
func luaToOrganization(lv lua.LValue) (*service.Organization, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("must be a table, got %s", lv.Type())
	}

	id := tbl.RawGetString("id")
	if id.Type() != lua.LTString || lua.LVAsString(id) == "" {
		return nil, fmt.Errorf("'id' field must be a non-empty string")
	}

	org := &service.Organization{
		ID:   lua.LVAsString(id),
		Name: lua.LVAsString(tbl.RawGetString("name")),
	}

	attrs := tbl.RawGetString("attributes")
	switch attrs.Type() {
	case lua.LTNil:
		return org, nil
	case lua.LTTable:
	default:
		return nil, fmt.Errorf("'attributes' field must be a table, got %s", attrs.Type())
	}

	var convErr error
	org.Attributes = make(map[string][]string)
	attrs.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if convErr != nil {
			return
		}
		values, err := luaservices.StringList(value)
		if err != nil {
			convErr = fmt.Errorf("attribute %q: %w", key.String(), err)
			return
		}
		org.Attributes[key.String()] = values
	})
	if convErr != nil {
		return nil, convErr
	}
	return org, nil
}
