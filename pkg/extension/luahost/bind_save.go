package luahost

import (
	"fmt"

	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const saveResponseName = "save"

func registerSaveResponseType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(saveResponseName)
	ls.SetGlobal(saveResponseName, mt)

	// Static attributes.
	ls.SetField(mt, "allow", ls.NewFunction(newSaveAllow))
	ls.SetField(mt, "deny", ls.NewFunction(newSaveDeny))
	ls.SetField(mt, "rename", ls.NewFunction(newSaveRename))
}

func newSaveAllow(ls *lua.LState) int {
	ls.Push(wrapSaveResponse(ls, &event.SaveResponse{Action: event.ActionAllow}))
	return 1
}

func newSaveDeny(ls *lua.LState) int {
	val := &event.SaveResponse{
		Action: event.ActionDeny,
		Reason: ls.OptString(1, "Attachment denied by policy"),
	}
	ls.Push(wrapSaveResponse(ls, val))
	return 1
}

func newSaveRename(ls *lua.LState) int {
	val := &event.SaveResponse{
		Action: event.ActionAllow,
		Name:   ls.CheckString(1),
	}
	ls.Push(wrapSaveResponse(ls, val))
	return 1
}

func wrapSaveResponse(ls *lua.LState, val *event.SaveResponse) *lua.LUserData {
	return wrapUserData(ls, val, saveResponseName)
}

func unwrapSaveResponse(lv lua.LValue) (*event.SaveResponse, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(*event.SaveResponse); ok {
			return v, nil
		}
	}

	return nil, fmt.Errorf("expected SaveResponse, got %q", lv.Type().String())
}
