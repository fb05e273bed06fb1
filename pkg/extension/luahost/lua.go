package luahost

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/inbucket/mandrill-inbound/pkg/config"
	"github.com/inbucket/mandrill-inbound/pkg/extension"
	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// listenerName is the name Lua listeners are registered under in the extension host.
const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions []string // Event functions defined by the script.
	extHost   *extension.Host
	pool      *statePool
	logger    zerolog.Logger
}

// New constructs a new Lua Host, pre-compiling the script at conf.Path. A missing script is not
// an error, a nil Host is returned.
func New(logger zerolog.Logger, conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}
	logger = logger.With().Str("module", "lua").Logger()
	startLog := logger.With().Str("phase", "startup").Str("path", scriptPath).Logger()

	fi, err := os.Stat(scriptPath)
	if errors.Is(err, fs.ErrNotExist) {
		startLog.Info().Msg("Script file not found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("lua script %v is a directory", scriptPath)
	}

	startLog.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logger, extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.
// The provided path is used in logging and error messages.
func NewFromReader(
	logger zerolog.Logger,
	extHost *extension.Host,
	r io.Reader,
	path string,
) (*Host, error) {
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm an LState can be created from the script.
	pool := newStatePool(logger, proto)
	h := &Host{extHost: extHost, pool: pool, logger: logger}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	defer pool.putState(ls)

	ib, err := getInbound(ls)
	if err != nil {
		return nil, err
	}
	h.wireFunctions(ib)

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireFunctions registers extension listeners for each event function the script defined.
func (h *Host) wireFunctions(ib *Inbound) {
	events := h.extHost.Events
	if ib.After.MessageParsed != nil {
		h.Functions = append(h.Functions, afterMessageParsedFnName)
		events.AfterMessageParsed.AddListener(listenerName, h.handleAfterMessageParsed)
	}
	if ib.After.AttachmentSaved != nil {
		h.Functions = append(h.Functions, afterAttachmentSavedFnName)
		events.AfterAttachmentSaved.AddListener(listenerName, h.handleAfterAttachmentSaved)
	}
	if ib.Before.AttachmentSaved != nil {
		h.Functions = append(h.Functions, beforeAttachmentSavedFnName)
		events.BeforeAttachmentSaved.AddListener(listenerName, h.handleBeforeAttachmentSaved)
	}
	h.logger.Debug().Str("phase", "startup").Strs("functions", h.Functions).
		Msg("Registered Lua event functions")
}

func (h *Host) handleAfterMessageParsed(msg event.InboundMessage) {
	logger, ls, ib, ok := h.prepareInboundCall(afterMessageParsedFnName)
	if !ok {
		return
	}
	defer h.pool.putState(ls)

	err := ls.CallByParam(
		lua.P{Fn: ib.After.MessageParsed, NRet: 0, Protect: true},
		wrapInboundMessage(ls, &msg),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
	}
}

func (h *Host) handleAfterAttachmentSaved(att event.Attachment) {
	logger, ls, ib, ok := h.prepareInboundCall(afterAttachmentSavedFnName)
	if !ok {
		return
	}
	defer h.pool.putState(ls)

	err := ls.CallByParam(
		lua.P{Fn: ib.After.AttachmentSaved, NRet: 0, Protect: true},
		wrapAttachment(ls, &att),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
	}
}

func (h *Host) handleBeforeAttachmentSaved(att event.Attachment) *event.SaveResponse {
	logger, ls, ib, ok := h.prepareInboundCall(beforeAttachmentSavedFnName)
	if !ok {
		return nil
	}
	defer h.pool.putState(ls)

	err := ls.CallByParam(
		lua.P{Fn: ib.Before.AttachmentSaved, NRet: 1, Protect: true},
		wrapAttachment(ls, &att),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
		return nil
	}

	lval := ls.Get(-1)
	ls.Pop(1)
	if lval == lua.LNil {
		return nil
	}
	res, err := unwrapSaveResponse(lval)
	if err != nil {
		logger.Error().Err(err).Msg("Bad response from Lua function")
		return nil
	}
	result := *res
	return &result
}

// prepareInboundCall checks out an LState and looks up its inbound object. When ok is true the
// caller must return ls to the pool.
func (h *Host) prepareInboundCall(fnName string) (
	logger zerolog.Logger, ls *lua.LState, ib *Inbound, ok bool,
) {
	logger = h.logger.With().Str("phase", "event").Str("event", fnName).Logger()

	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return logger, nil, nil, false
	}
	ib, err = getInbound(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to obtain Lua inbound object")
		h.pool.putState(ls)
		return logger, nil, nil, false
	}

	return logger, ls, ib, true
}
