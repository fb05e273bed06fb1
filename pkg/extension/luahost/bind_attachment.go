package luahost

import (
	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const attachmentName = "attachment"

func registerAttachmentType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(attachmentName)
	ls.SetField(mt, "__index", ls.NewFunction(attachmentIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(readOnlyNewIndex(attachmentName)))
}

func wrapAttachment(ls *lua.LState, val *event.Attachment) *lua.LUserData {
	return wrapUserData(ls, val, attachmentName)
}

func checkAttachment(ls *lua.LState, pos int) *event.Attachment {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.Attachment); ok {
		return v
	}
	ls.ArgError(pos, attachmentName+" expected")
	return nil
}

func attachmentIndex(ls *lua.LState) int {
	a := checkAttachment(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "message_id":
		ls.Push(lua.LString(a.MessageID))
	case "name":
		ls.Push(lua.LString(a.Name))
	case "content_type":
		ls.Push(lua.LString(a.ContentType))
	case "size":
		ls.Push(lua.LNumber(a.Size))
	case "path":
		ls.Push(lua.LString(a.Path))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}
