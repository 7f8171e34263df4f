// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
)

// Client 是屏幕会话在窗口管理器一侧的客户端，
// 返回 bool 的调用为 false 时表示客户端处理失败。
type Client interface {
	OnCreateScreenSessionOnly(id screensession.ScreenID, rsID uint64, name string, isExtend bool) bool
	OnExtendDisplayNodeChange(first, second screensession.ScreenID) bool
	OnMainDisplayNodeChange(main, extend screensession.ScreenID, extendRSID uint64) bool
	SetScreenCombination(main, other screensession.ScreenID, comb screensession.Combination)
	OnScreenConnectionChange(option screensession.SessionOption, event screensession.ScreenEvent)
	OnPropertyChange(id screensession.ScreenID, property screensession.Property,
		reason screensession.PropertyChangeReason)
	OnDensityChange(id screensession.ScreenID, density float64)
}

// Listener 接收切换完成后的通知
type Listener interface {
	OnCombinationChanged(inner, external *screensession.ScreenSession)
	OnScreenAvailableChanged(id screensession.ScreenID, available bool)
}
