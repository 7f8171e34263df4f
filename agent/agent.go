// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	ofdbus "github.com/linuxdeepin/go-dbus-factory/system/org.freedesktop.dbus"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/dbusutil/proxy"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/xerrors"
)

var logger = log.NewLogger("daemon/agent")

const (
	agentInterfacePrefix = "org.deepin.dde.Screen1."
	maxAgentsPerType     = 32
	callTimeout          = 2 * time.Second
)

var (
	ErrInvalidType    = xerrors.New("invalid agent type")
	ErrTooManyAgents  = xerrors.New("too many agents")
	ErrAgentNotExists = xerrors.New("agent not registered")
)

// Type 是客户端代理关心的事件类别
type Type uint32

const (
	TypeDisplayEvent Type = iota
	TypePowerEvent
	TypeDisplayState
	TypeScreenEvent
	TypeFoldEvent
	typeCount
)

func (t Type) String() string {
	switch t {
	case TypeDisplayEvent:
		return "DisplayEvent"
	case TypePowerEvent:
		return "PowerEvent"
	case TypeDisplayState:
		return "DisplayState"
	case TypeScreenEvent:
		return "ScreenEvent"
	case TypeFoldEvent:
		return "FoldEvent"
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

func (t Type) IsValid() bool {
	return t < typeCount
}

// Interface 返回该类代理需要实现的 D-Bus 接口名
func (t Type) Interface() string {
	return agentInterfacePrefix + t.String() + "Agent"
}

// Caller 向某个总线名上的对象发起调用。
// Call 等待回复，Go 只负责发出不等待回复的调用
type Caller interface {
	Call(owner string, path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call
	Go(owner string, path dbus.ObjectPath, method string, args ...interface{}) error
}

type busCaller struct {
	conn *dbus.Conn
}

// NewBusCaller 返回基于 conn 的 Caller，每次调用最多等待 2 秒
func NewBusCaller(conn *dbus.Conn) Caller {
	return busCaller{conn: conn}
}

func (c busCaller) Call(owner string, path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return c.conn.Object(owner, path).CallWithContext(ctx, method, 0, args...)
}

func (c busCaller) Go(owner string, path dbus.ObjectPath, method string, args ...interface{}) error {
	return c.conn.Object(owner, path).Go(method, dbus.FlagNoReplyExpected, nil, args...).Err
}

type Agent struct {
	Owner  string
	Path   dbus.ObjectPath
	Type   Type
	Screen screensession.ScreenID
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s %s%s", a.Type, a.Owner, a.Path)
}

type agentKey struct {
	owner string
	path  dbus.ObjectPath
}

// Registry 记录各类客户端代理，代理所在的连接断开后自动移除
type Registry struct {
	mu     sync.Mutex
	agents [typeCount]map[agentKey]*Agent
	caller Caller

	client     *ScreenClient
	clientLost func()

	sysDBusDaemon ofdbus.DBus
}

func NewRegistry(caller Caller) *Registry {
	r := &Registry{caller: caller}
	for i := range r.agents {
		r.agents[i] = make(map[agentKey]*Agent)
	}
	return r
}

func (r *Registry) Register(owner string, path dbus.ObjectPath, typ Type) error {
	return r.RegisterForScreen(owner, path, typ, screensession.InvalidScreenID)
}

// RegisterForScreen 注册只关心某个屏幕的代理，屏幕被移除时代理一起移除
func (r *Registry) RegisterForScreen(owner string, path dbus.ObjectPath, typ Type, screen screensession.ScreenID) error {
	if !typ.IsValid() {
		return xerrors.Errorf("%d: %w", uint32(typ), ErrInvalidType)
	}
	if !path.IsValid() {
		return xerrors.Errorf("invalid object path %q", path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.agents[typ]
	key := agentKey{owner, path}
	if _, ok := m[key]; !ok && len(m) >= maxAgentsPerType {
		return xerrors.Errorf("%s: %w", typ, ErrTooManyAgents)
	}
	a := &Agent{Owner: owner, Path: path, Type: typ, Screen: screen}
	m[key] = a
	logger.Info("register agent", a)
	return nil
}

// Unregister 移除 owner 在 path 上注册的所有类型的代理
func (r *Registry) Unregister(owner string, path dbus.ObjectPath) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := agentKey{owner, path}
	found := false
	for _, m := range r.agents {
		if _, ok := m[key]; ok {
			delete(m, key)
			found = true
		}
	}
	if !found {
		return ErrAgentNotExists
	}
	logger.Info("unregister agent", owner, path)
	return nil
}

func (r *Registry) Count(typ Type) int {
	if !typ.IsValid() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents[typ])
}

func (r *Registry) snapshot(typ Type, screen screensession.ScreenID) []Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Agent, 0, len(r.agents[typ]))
	for _, a := range r.agents[typ] {
		if screen != screensession.InvalidScreenID &&
			a.Screen != screensession.InvalidScreenID && a.Screen != screen {
			continue
		}
		result = append(result, *a)
	}
	return result
}

// Notify 向该类所有代理发出 method 调用，不等待回复，返回成功发出的个数
func (r *Registry) Notify(typ Type, method string, args ...interface{}) int {
	return r.NotifyScreen(screensession.InvalidScreenID, typ, method, args...)
}

// NotifyScreen 只通知没有绑定屏幕或绑定到 screen 的代理
func (r *Registry) NotifyScreen(screen screensession.ScreenID, typ Type, method string, args ...interface{}) int {
	if !typ.IsValid() {
		return 0
	}
	// 发送时不持锁，代理回调里注册或注销不会死锁
	agents := r.snapshot(typ, screen)
	sent := 0
	for i := range agents {
		a := &agents[i]
		err := r.caller.Go(a.Owner, a.Path, typ.Interface()+"."+method, args...)
		if err != nil {
			logger.Warningf("notify %s %s failed: %v", a, method, err)
			continue
		}
		sent++
	}
	return sent
}

// RemoveScreen 移除绑定到 id 的代理，注册为屏幕表的移除回调
func (r *Registry) RemoveScreen(id screensession.ScreenID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.agents {
		for key, a := range m {
			if a.Screen == id {
				logger.Debug("remove agent of screen", id, a)
				delete(m, key)
			}
		}
	}
}

func (r *Registry) HandleNameLost(name string) {
	r.mu.Lock()
	for _, m := range r.agents {
		for key, a := range m {
			if a.Owner == name {
				logger.Debug("remove agent", a)
				delete(m, key)
			}
		}
	}
	var lost func()
	if r.client != nil && r.client.owner == name {
		logger.Info("screen session client lost", name)
		r.client = nil
		lost = r.clientLost
	}
	r.mu.Unlock()

	if lost != nil {
		lost()
	}
}

// SetClient 设置窗口管理器一侧的屏幕会话客户端，同一时间只有一个
func (r *Registry) SetClient(owner string, path dbus.ObjectPath) (*ScreenClient, error) {
	if !path.IsValid() {
		return nil, xerrors.Errorf("invalid object path %q", path)
	}
	c := newScreenClient(r.caller, owner, path)
	r.mu.Lock()
	r.client = c
	r.mu.Unlock()
	logger.Info("set screen session client", owner, path)
	return c, nil
}

func (r *Registry) Client() *ScreenClient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// OnClientLost 设置客户端断开时的回调
func (r *Registry) OnClientLost(fn func()) {
	r.mu.Lock()
	r.clientLost = fn
	r.mu.Unlock()
}

// Watch 监听 NameOwnerChanged，连接断开的代理会被移除
func (r *Registry) Watch(sigLoop *dbusutil.SignalLoop) error {
	r.sysDBusDaemon = ofdbus.NewDBus(sigLoop.Conn())
	r.sysDBusDaemon.InitSignalExt(sigLoop, true)
	_, err := r.sysDBusDaemon.ConnectNameOwnerChanged(func(name, oldOwner, newOwner string) {
		if strings.HasPrefix(name, ":") && oldOwner != "" && newOwner == "" {
			r.HandleNameLost(name)
		}
	})
	return err
}

func (r *Registry) Unwatch() {
	if r.sysDBusDaemon != nil {
		r.sysDBusDaemon.RemoveHandler(proxy.RemoveAllHandlers)
	}
}
