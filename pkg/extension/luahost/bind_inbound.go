package luahost

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const (
	inboundName       = "inbound"
	inboundAfterName  = "inbound_after"
	inboundBeforeName = "inbound_before"

	afterMessageParsedFnName    = "after.message_parsed"
	afterAttachmentSavedFnName  = "after.attachment_saved"
	beforeAttachmentSavedFnName = "before.attachment_saved"
)

// Inbound is the global scripts attach their event functions to, e.g.
// `function inbound.after.message_parsed(msg) ... end`.
type Inbound struct {
	After  InboundAfterFuncs
	Before InboundBeforeFuncs
}

// InboundAfterFuncs holds the after-event functions of a script.
type InboundAfterFuncs struct {
	MessageParsed   *lua.LFunction
	AttachmentSaved *lua.LFunction
}

// InboundBeforeFuncs holds the before-event functions of a script.
type InboundBeforeFuncs struct {
	AttachmentSaved *lua.LFunction
}

func registerInboundTypes(ls *lua.LState) {
	mt := ls.NewTypeMetatable(inboundName)
	ls.SetField(mt, "__index", ls.NewFunction(inboundIndex))

	mt = ls.NewTypeMetatable(inboundAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(inboundAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(inboundAfterNewIndex))

	mt = ls.NewTypeMetatable(inboundBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(inboundBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(inboundBeforeNewIndex))

	ls.SetGlobal(inboundName, wrapUserData(ls, &Inbound{}, inboundName))
}

func wrapUserData(ls *lua.LState, val any, typeName string) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(typeName))

	return ud
}

func getInbound(ls *lua.LState) (*Inbound, error) {
	lv := ls.GetGlobal(inboundName)
	if lv == lua.LNil {
		return nil, errors.New("inbound object was nil")
	}
	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("inbound object was type %s instead of UserData", lv.Type())
	}
	val, ok := ud.Value.(*Inbound)
	if !ok {
		return nil, fmt.Errorf("inbound object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkInbound(ls *lua.LState, pos int) *Inbound {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*Inbound); ok {
		return val
	}
	ls.ArgError(pos, inboundName+" expected")
	return nil
}

func checkInboundAfter(ls *lua.LState, pos int) *InboundAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*InboundAfterFuncs); ok {
		return val
	}
	ls.ArgError(pos, inboundAfterName+" expected")
	return nil
}

func checkInboundBefore(ls *lua.LState, pos int) *InboundBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*InboundBeforeFuncs); ok {
		return val
	}
	ls.ArgError(pos, inboundBeforeName+" expected")
	return nil
}

// inbound getter.
func inboundIndex(ls *lua.LState) int {
	ib := checkInbound(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "after":
		ls.Push(wrapUserData(ls, &ib.After, inboundAfterName))
	case "before":
		ls.Push(wrapUserData(ls, &ib.Before, inboundBeforeName))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// inbound.after getter.
func inboundAfterIndex(ls *lua.LState) int {
	after := checkInboundAfter(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "message_parsed":
		ls.Push(funcOrNil(after.MessageParsed))
	case "attachment_saved":
		ls.Push(funcOrNil(after.AttachmentSaved))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// inbound.after setter.
func inboundAfterNewIndex(ls *lua.LState) int {
	after := checkInboundAfter(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "message_parsed":
		after.MessageParsed = ls.CheckFunction(3)
	case "attachment_saved":
		after.AttachmentSaved = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid inbound.after index %q", index)
	}

	return 0
}

// inbound.before getter.
func inboundBeforeIndex(ls *lua.LState) int {
	before := checkInboundBefore(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "attachment_saved":
		ls.Push(funcOrNil(before.AttachmentSaved))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// inbound.before setter.
func inboundBeforeNewIndex(ls *lua.LState) int {
	before := checkInboundBefore(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "attachment_saved":
		before.AttachmentSaved = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid inbound.before index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
