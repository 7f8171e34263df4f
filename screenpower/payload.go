// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screenpower

import (
	"fmt"

	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"golang.org/x/xerrors"
)

var ErrPayloadMismatch = xerrors.New("power info payload mismatch")

// PowerInfo 是电源事件携带的数据，只有本包定义的几种类型
type PowerInfo interface {
	isPowerInfo()
	fmt.Stringer
}

type ReasonInfo struct {
	Reason PowerStateChangeReason
}

type DisplayStateInfo struct {
	State DisplayState
}

type PowerStateInfo struct {
	State  ScreenPowerState
	Reason PowerStateChangeReason
}

type ScreenPowerInfo struct {
	ScreenID screensession.ScreenID
	Status   render.PowerStatus
}

type DisplayPowerInfo struct {
	DisplayID uint64
	State     DisplayState
}

func (ReasonInfo) isPowerInfo()       {}
func (DisplayStateInfo) isPowerInfo() {}
func (PowerStateInfo) isPowerInfo()   {}
func (ScreenPowerInfo) isPowerInfo()  {}
func (DisplayPowerInfo) isPowerInfo() {}

func (i ReasonInfo) String() string {
	return fmt.Sprintf("reason %d", i.Reason)
}

func (i DisplayStateInfo) String() string {
	return "display state " + i.State.String()
}

func (i PowerStateInfo) String() string {
	return fmt.Sprintf("power state %v reason %d", i.State, i.Reason)
}

func (i ScreenPowerInfo) String() string {
	return fmt.Sprintf("screen %d status %v", i.ScreenID, i.Status)
}

func (i DisplayPowerInfo) String() string {
	return fmt.Sprintf("display %d state %v", i.DisplayID, i.State)
}

func mismatch(action string, info PowerInfo) error {
	return xerrors.Errorf("%s got %T: %w", action, info, ErrPayloadMismatch)
}
