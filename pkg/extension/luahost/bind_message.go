package luahost

import (
	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const inboundMessageName = "inbound_message"

func registerInboundMessageType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(inboundMessageName)
	ls.SetField(mt, "__index", ls.NewFunction(inboundMessageIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(readOnlyNewIndex(inboundMessageName)))
}

func wrapInboundMessage(ls *lua.LState, val *event.InboundMessage) *lua.LUserData {
	return wrapUserData(ls, val, inboundMessageName)
}

func checkInboundMessage(ls *lua.LState, pos int) *event.InboundMessage {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.InboundMessage); ok {
		return v
	}
	ls.ArgError(pos, inboundMessageName+" expected")
	return nil
}

// Gets a field value from the InboundMessage user object. This emulates a Lua table, allowing
// `msg.subject` instead of `msg:subject()`.
func inboundMessageIndex(ls *lua.LState) int {
	m := checkInboundMessage(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "message_id":
		ls.Push(lua.LString(m.MessageID))
	case "subject":
		ls.Push(lua.LString(m.Subject))
	case "from":
		ls.Push(wrapMailAddress(ls, m.From))
	case "to":
		ls.Push(wrapMailAddressList(ls, m.To))
	case "cc":
		ls.Push(wrapMailAddressList(ls, m.Cc))
	case "mailbox_hash":
		ls.Push(lua.LString(m.MailboxHash))
	case "tags":
		lt := ls.NewTable()
		for _, tag := range m.Tags {
			lt.Append(lua.LString(tag))
		}
		ls.Push(lt)
	case "spam_score":
		ls.Push(lua.LNumber(m.SpamScore))
	case "dkim":
		ls.Push(lua.LBool(m.DKIM))
	case "spf":
		ls.Push(lua.LString(m.SPF))
	case "attachments":
		ls.Push(lua.LNumber(m.Attachments))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// readOnlyNewIndex rejects assignments to event objects scripts are not allowed to modify.
func readOnlyNewIndex(typeName string) lua.LGFunction {
	return func(ls *lua.LState) int {
		ls.RaiseError("%s is read-only", typeName)
		return 0
	}
}
