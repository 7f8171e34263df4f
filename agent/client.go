// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
)

const clientInterface = agentInterfacePrefix + "SessionClient"

// ScreenClient 是窗口管理器一侧屏幕会话客户端的代理，
// 需要回复的调用失败时返回 false。
type ScreenClient struct {
	caller Caller
	owner  string
	path   dbus.ObjectPath
}

func newScreenClient(caller Caller, owner string, path dbus.ObjectPath) *ScreenClient {
	return &ScreenClient{caller: caller, owner: owner, path: path}
}

func (c *ScreenClient) Owner() string {
	return c.owner
}

func (c *ScreenClient) call(method string, args ...interface{}) *dbus.Call {
	return c.caller.Call(c.owner, c.path, clientInterface+"."+method, args...)
}

func (c *ScreenClient) callBool(method string, args ...interface{}) bool {
	var ok bool
	err := c.call(method, args...).Store(&ok)
	if err != nil {
		logger.Warningf("call client %s failed: %v", method, err)
		return false
	}
	return ok
}

func (c *ScreenClient) notify(method string, args ...interface{}) {
	err := c.call(method, args...).Err
	if err != nil {
		logger.Warningf("notify client %s failed: %v", method, err)
	}
}

func (c *ScreenClient) OnCreateScreenSessionOnly(id screensession.ScreenID, rsID uint64, name string, isExtend bool) bool {
	return c.callBool("OnCreateScreenSessionOnly", uint64(id), rsID, name, isExtend)
}

func (c *ScreenClient) OnExtendDisplayNodeChange(first, second screensession.ScreenID) bool {
	return c.callBool("OnExtendDisplayNodeChange", uint64(first), uint64(second))
}

func (c *ScreenClient) OnMainDisplayNodeChange(main, extend screensession.ScreenID, extendRSID uint64) bool {
	return c.callBool("OnMainDisplayNodeChange", uint64(main), uint64(extend), extendRSID)
}

func (c *ScreenClient) SetScreenCombination(main, other screensession.ScreenID, comb screensession.Combination) {
	c.notify("SetScreenCombination", uint64(main), uint64(other), uint32(comb))
}

func (c *ScreenClient) OnScreenConnectionChange(option screensession.SessionOption, event screensession.ScreenEvent) {
	c.notify("OnScreenConnectionChange", uint64(option.ScreenID), option.RSID, option.Name,
		option.IsExtend, option.InnerName, uint32(event))
}

func (c *ScreenClient) OnPropertyChange(id screensession.ScreenID, property screensession.Property,
	reason screensession.PropertyChangeReason) {
	b := property.Bounds
	c.notify("OnPropertyChange", uint64(id), b.X, b.Y, b.Width, b.Height,
		property.Rotation, property.Density, uint32(reason))
}

func (c *ScreenClient) OnDensityChange(id screensession.ScreenID, density float64) {
	c.notify("OnDensityChange", uint64(id), density)
}
