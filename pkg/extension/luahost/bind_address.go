package luahost

import (
	"net/mail"

	lua "github.com/yuin/gopher-lua"
)

const mailAddressName = "address"

func registerMailAddressType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailAddressName)
	ls.SetGlobal(mailAddressName, mt)

	// Static attributes.
	ls.SetField(mt, "new", ls.NewFunction(newMailAddress))

	// Fields.
	ls.SetField(mt, "__index", ls.NewFunction(mailAddressIndex))
	ls.SetField(mt, "__tostring", ls.NewFunction(mailAddressToString))
}

func newMailAddress(ls *lua.LState) int {
	val := &mail.Address{
		Name:    ls.CheckString(1),
		Address: ls.CheckString(2),
	}
	ls.Push(wrapMailAddress(ls, val))

	return 1
}

func wrapMailAddress(ls *lua.LState, val *mail.Address) lua.LValue {
	if val == nil {
		return lua.LNil
	}
	return wrapUserData(ls, val, mailAddressName)
}

func wrapMailAddressList(ls *lua.LState, addrs []*mail.Address) *lua.LTable {
	lt := ls.NewTable()
	for _, a := range addrs {
		lt.Append(wrapMailAddress(ls, a))
	}
	return lt
}

func checkMailAddress(ls *lua.LState, pos int) *mail.Address {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*mail.Address); ok {
		return val
	}
	ls.ArgError(pos, mailAddressName+" expected")
	return nil
}

// Gets a field of the address, allowing `addr.name` rather than `addr:name()`.
func mailAddressIndex(ls *lua.LState) int {
	a := checkMailAddress(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "name":
		ls.Push(lua.LString(a.Name))
	case "address":
		ls.Push(lua.LString(a.Address))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

func mailAddressToString(ls *lua.LState) int {
	a := checkMailAddress(ls, 1)
	ls.Push(lua.LString(a.String()))

	return 1
}
