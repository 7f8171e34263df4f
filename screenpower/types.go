// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screenpower

import "fmt"

type TransitionState uint32

const (
	StateScreenInit TransitionState = iota
	StateScreenOff
	StateScreenOn
	StateWaitScreenOnReady
	StateWaitScreenAdvancedOnReady
	StateScreenAod
	StateWaitLockScreenInd
	StateWaitScreenCtrlRsp
	StateScreenAdvancedOn
	StateScreenDoze
	StateScreenDozeSuspend
)

var transitionStateNames = map[TransitionState]string{
	StateScreenInit:                "SCREEN_INIT",
	StateScreenOff:                 "SCREEN_OFF",
	StateScreenOn:                  "SCREEN_ON",
	StateWaitScreenOnReady:         "WAIT_SCREEN_ON_READY",
	StateWaitScreenAdvancedOnReady: "WAIT_SCREEN_ADVANCED_ON_READY",
	StateScreenAod:                 "SCREEN_AOD",
	StateWaitLockScreenInd:         "WAIT_LOCK_SCREEN_IND",
	StateWaitScreenCtrlRsp:         "WAIT_SCREEN_CTRL_RSP",
	StateScreenAdvancedOn:          "SCREEN_ADVANCED_ON",
	StateScreenDoze:                "SCREEN_DOZE",
	StateScreenDozeSuspend:         "SCREEN_DOZE_SUSPEND",
}

func (s TransitionState) String() string {
	if name, ok := transitionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TransitionState(%d)", uint32(s))
}

type PowerEvent uint32

const (
	EventPowerOn PowerEvent = iota
	EventPowerOff
	EventPowerOnDirectly
	EventPowerOffDirectly
	EventWakeupBegin
	EventWakeupBeginAdvanced
	EventSuspendBegin
	EventSuspend
	EventSetDisplayState
	EventSetDisplayStateDoze
	EventSetDisplayStateDozeSuspend
	EventDoze
	EventDozeSuspend
	EventAodEnterSuccess
	EventAodEnterFail
	EventDmsPowerCbEnd
	EventSyncPowerOn
	EventAdvancedOn
	EventAdvancedOff
	EventSetScreenPowerForAllPowerOn
	EventSetScreenPowerForAllPowerOff
	eventCount
)

var powerEventNames = map[PowerEvent]string{
	EventPowerOn:                      "POWER_ON",
	EventPowerOff:                     "POWER_OFF",
	EventPowerOnDirectly:              "POWER_ON_DIRECTLY",
	EventPowerOffDirectly:             "POWER_OFF_DIRECTLY",
	EventWakeupBegin:                  "WAKEUP_BEGIN",
	EventWakeupBeginAdvanced:          "WAKEUP_BEGIN_ADVANCED",
	EventSuspendBegin:                 "SUSPEND_BEGIN",
	EventSuspend:                      "SUSPEND",
	EventSetDisplayState:              "SET_DISPLAY_STATE",
	EventSetDisplayStateDoze:          "SET_DISPLAY_STATE_DOZE",
	EventSetDisplayStateDozeSuspend:   "SET_DISPLAY_STATE_DOZE_SUSPEND",
	EventDoze:                         "E_DOZE",
	EventDozeSuspend:                  "E_DOZE_SUSPEND",
	EventAodEnterSuccess:              "AOD_ENTER_SUCCESS",
	EventAodEnterFail:                 "AOD_ENTER_FAIL",
	EventDmsPowerCbEnd:                "DMS_POWER_CB_END",
	EventSyncPowerOn:                  "SYNC_POWER_ON",
	EventAdvancedOn:                   "E_ADVANCED_ON",
	EventAdvancedOff:                  "E_ADVANCED_OFF",
	EventSetScreenPowerForAllPowerOn:  "SET_SCREEN_POWER_FOR_ALL_POWER_ON",
	EventSetScreenPowerForAllPowerOff: "SET_SCREEN_POWER_FOR_ALL_POWER_OFF",
}

func (e PowerEvent) String() string {
	if name, ok := powerEventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("PowerEvent(%d)", uint32(e))
}

// IsValid 报告 e 是否是已定义的事件，D-Bus 传入的值要先检查
func (e PowerEvent) IsValid() bool {
	return e < eventCount
}

type PowerStateChangeReason uint32

const (
	ReasonInit PowerStateChangeReason = iota
	ReasonTimeout
	ReasonRunningLock
	ReasonBattery
	ReasonThermal
	ReasonWork
	ReasonSystem
	ReasonApplication
	ReasonSettings
	ReasonHardKey
	ReasonTouch
	ReasonCable
	ReasonSensor
	ReasonLid
	ReasonCamera
	ReasonAccess
	ReasonReset
	ReasonPowerKey
	ReasonKeyboard
	ReasonMouse
	ReasonDoubleClick
	ReasonCollaboration
	ReasonSwitch
	ReasonPreBright
	ReasonDisplaySwitch
	ReasonShutDown
	ReasonUnknown
	ReasonPowerButton PowerStateChangeReason = 100
)

type DisplayState uint32

const (
	DisplayStateUnknown DisplayState = iota
	DisplayStateOff
	DisplayStateOn
	DisplayStateDoze
	DisplayStateDozeSuspend
	DisplayStateVR
	DisplayStateOnSuspend
)

func (s DisplayState) String() string {
	switch s {
	case DisplayStateOff:
		return "OFF"
	case DisplayStateOn:
		return "ON"
	case DisplayStateDoze:
		return "DOZE"
	case DisplayStateDozeSuspend:
		return "DOZE_SUSPEND"
	case DisplayStateVR:
		return "VR"
	case DisplayStateOnSuspend:
		return "ON_SUSPEND"
	}
	return "UNKNOWN"
}

// ScreenPowerState 是对外的整机屏幕电源状态
type ScreenPowerState uint32

const (
	PowerStateOn ScreenPowerState = iota
	PowerStateStandBy
	PowerStateSuspend
	PowerStateOff
	PowerStateDoze
	PowerStateDozeSuspend
	PowerStateInvalid
)

func (s ScreenPowerState) String() string {
	switch s {
	case PowerStateOn:
		return "POWER_ON"
	case PowerStateStandBy:
		return "POWER_STAND_BY"
	case PowerStateSuspend:
		return "POWER_SUSPEND"
	case PowerStateOff:
		return "POWER_OFF"
	case PowerStateDoze:
		return "POWER_DOZE"
	case PowerStateDozeSuspend:
		return "POWER_DOZE_SUSPEND"
	}
	return "INVALID_STATE"
}
