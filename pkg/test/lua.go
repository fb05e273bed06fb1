// Package test holds helpers shared by the package tests.
package test

import (
	"strings"
	"testing"
	"time"

	"github.com/cosmotek/loguago"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// LuaInit holds useful test globals.
const LuaInit = `
	local logger = require("logger")

	async = false
	test_ok = true

	-- With async: marks tests as failed via test_ok, logs error.
	-- Without async: erroring when tests fail.
	function assert_async(value, message)
		if not value then
			if async then
				logger.error(message, {from = "assert_async"})
				test_ok = false
			else
				error(message)
			end
		end
	end

	-- Verifies plain values and list-style tables.
	function assert_eq(got, want, label)
		label = label or "value"
		if type(got) == "table" and type(want) == "table" then
			assert_async(#got == #want,
				string.format("%s: got %d elements, wanted %d", label, #got, #want))
			for i, gotv in ipairs(got) do
				assert_eq(gotv, want[i], string.format("%s[%d]", label, i))
			end
			return
		end

		assert_async(got == want,
			string.format("%s: got %s, wanted %s", label, tostring(got), tostring(want)))
	end
`

// NewLuaState creates a new Lua LState initialized with logging and the test helpers in
// LuaInit. The returned builder collects log output.
func NewLuaState() (*lua.LState, *strings.Builder) {
	output := &strings.Builder{}
	logger := loguago.NewLogger(zerolog.New(output))

	ls := lua.NewState()
	ls.PreloadModule("logger", logger.Loader)
	if err := ls.DoString(LuaInit); err != nil {
		panic(err)
	}

	return ls, output
}

// AssertNotified requires a truthy LValue on the notify channel.
func AssertNotified(t *testing.T, notify chan lua.LValue) {
	t.Helper()
	select {
	case reslv := <-notify:
		if lua.LVIsFalse(reslv) {
			t.Error("Lua responded with false, wanted true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lua did not respond to event within timeout")
	}
}
