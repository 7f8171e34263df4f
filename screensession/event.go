// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screensession

import "fmt"

// ScreenEvent 是屏幕连接状态变化事件
type ScreenEvent uint32

const (
	ScreenEventUnknown ScreenEvent = iota
	ScreenEventConnected
	ScreenEventDisconnected
)

func (e ScreenEvent) String() string {
	switch e {
	case ScreenEventConnected:
		return "CONNECTED"
	case ScreenEventDisconnected:
		return "DISCONNECTED"
	}
	return "UNKNOWN"
}

// PropertyChangeReason 说明屏幕属性为什么变化
type PropertyChangeReason uint32

const (
	ReasonUndefined PropertyChangeReason = iota
	ReasonRotation
	ReasonChangeMode
	ReasonFoldScreenExpand
	ReasonScreenConnect
	ReasonScreenDisconnect
	ReasonFoldScreenFolding
	ReasonVirtualScreenResize
	ReasonRelativePositionChange
	ReasonSuperFoldStatusChange
	ReasonSwitchMode
)

func (r PropertyChangeReason) String() string {
	switch r {
	case ReasonRotation:
		return "ROTATION"
	case ReasonChangeMode:
		return "CHANGE_MODE"
	case ReasonFoldScreenExpand:
		return "FOLD_SCREEN_EXPAND"
	case ReasonScreenConnect:
		return "SCREEN_CONNECT"
	case ReasonScreenDisconnect:
		return "SCREEN_DISCONNECT"
	case ReasonFoldScreenFolding:
		return "FOLD_SCREEN_FOLDING"
	case ReasonVirtualScreenResize:
		return "VIRTUAL_SCREEN_RESIZE"
	case ReasonRelativePositionChange:
		return "RELATIVE_POSITION_CHANGE"
	case ReasonSuperFoldStatusChange:
		return "SUPER_FOLD_STATUS_CHANGE"
	case ReasonSwitchMode:
		return "SWITCH_MODE"
	}
	return "UNDEFINED"
}

// SessionOption 是通知客户端屏幕连接变化时携带的会话参数
type SessionOption struct {
	ScreenID  ScreenID
	RSID      uint64
	Name      string
	IsExtend  bool
	InnerName string
}

func (o SessionOption) String() string {
	return fmt.Sprintf("screen %d(rs %d, %s) extend=%v inner=%q",
		o.ScreenID, o.RSID, o.Name, o.IsExtend, o.InnerName)
}

// Option 返回该会话对应的连接参数
func (s *ScreenSession) Option() SessionOption {
	return SessionOption{
		ScreenID:  s.ID,
		RSID:      s.RSID,
		Name:      s.Name,
		IsExtend:  s.IsExtend,
		InnerName: s.InnerName,
	}
}
