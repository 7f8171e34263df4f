// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screenpower

import (
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"golang.org/x/xerrors"
)

func (m *StateMachine) doWakeUpBegin(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	i, ok := info.(ReasonInfo)
	if !ok {
		return mismatch("WakeUpBegin", info)
	}
	return m.executor.WakeUpBegin(i.Reason)
}

func (m *StateMachine) doSuspendBegin(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	i, ok := info.(ReasonInfo)
	if !ok {
		return mismatch("SuspendBegin", info)
	}
	return m.executor.SuspendBegin(i.Reason)
}

func (m *StateMachine) doSetDisplayState(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	switch i := info.(type) {
	case DisplayStateInfo:
		return m.executor.SetDisplayState(i.State)
	case DisplayPowerInfo:
		return m.executor.SetDisplayState(i.State)
	}
	return mismatch("SetDisplayState", info)
}

// doScreenPowerOn 只点亮屏幕，不改变记录的电源状态；
// 只有原因时点亮所有屏幕
func (m *StateMachine) doScreenPowerOn(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	switch i := info.(type) {
	case ScreenPowerInfo:
		return m.executor.SetScreenPowerStatus(i.ScreenID, i.Status)
	case ReasonInfo:
		return m.executor.SetScreenPowerForAll(PowerStateOn, i.Reason)
	}
	return mismatch("ScreenPowerOn", info)
}

func (m *StateMachine) doSetScreenPower(event PowerEvent, info PowerInfo) error {
	i, ok := info.(ScreenPowerInfo)
	if !ok {
		return mismatch("SetScreenPower", info)
	}
	err := m.executor.SetScreenPowerStatus(i.ScreenID, i.Status)
	if err != nil {
		return xerrors.Errorf("set screen %d power status %v: %w", i.ScreenID, i.Status, err)
	}
	m.setCurrentPowerStatus(i.Status)
	return nil
}

func (m *StateMachine) doRecordTransNormal(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	return nil
}

func (m *StateMachine) doSetScreenPowerForAll(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	i, ok := info.(PowerStateInfo)
	if !ok {
		return mismatch("SetScreenPowerForAll", info)
	}
	return m.executor.SetScreenPowerForAll(i.State, i.Reason)
}

func (m *StateMachine) doAodExitAndSetPowerOn(event PowerEvent, info PowerInfo) error {
	i, ok := info.(ScreenPowerInfo)
	if !ok {
		return mismatch("AodExitAndSetPowerOn", info)
	}
	return m.executor.AodExitAndSetPower(i.ScreenID, render.PowerStatusOn)
}

func (m *StateMachine) doAodExitAndSetPowerOff(event PowerEvent, info PowerInfo) error {
	i, ok := info.(ScreenPowerInfo)
	if !ok {
		return mismatch("AodExitAndSetPowerOff", info)
	}
	return m.executor.AodExitAndSetPower(i.ScreenID, i.Status)
}

func (m *StateMachine) doAodExitAndSetPowerAllOff(event PowerEvent, info PowerInfo) error {
	logger.Debug("event:", event)
	return m.executor.AodExitAndSetPowerAllOff()
}

// actionScreenPowerOff 关闭一个屏幕，主屏仍然亮着时保持当前状态
func (m *StateMachine) actionScreenPowerOff(event PowerEvent, info PowerInfo) error {
	err := m.doSetScreenPower(event, info)
	if err != nil {
		return err
	}
	if m.executor.ScreenPower() != PowerStateOff {
		state := m.CurrentState()
		m.ToTransition(state, true)
		logger.Infof("main screen is on, stay current state: %v event: %v", state, event)
	}
	return nil
}

func (m *StateMachine) add(state TransitionState, event PowerEvent, trans Transition) {
	m.table[transitionKey{state: state, event: event}] = trans
}

func (m *StateMachine) initTable() {
	m.table = make(map[transitionKey]Transition)

	m.add(StateScreenInit, EventPowerOnDirectly, Transition{Target: StateScreenInit, Action: m.doSetScreenPower})
	m.add(StateScreenInit, EventPowerOffDirectly, Transition{Target: StateScreenInit, Action: m.doSetScreenPower})

	m.add(StateScreenOff, EventPowerOn, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin,
		Timeout: normalTimeout, OnTimeout: m.doScreenPowerOn, TimeoutTarget: StateScreenOn})
	m.add(StateScreenOff, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin,
		Timeout: normalTimeout, OnTimeout: m.doScreenPowerOn, TimeoutTarget: StateScreenOn})
	m.add(StateScreenOff, EventPowerOnDirectly, Transition{Target: StateScreenOn, Action: m.doSetScreenPower})
	m.add(StateScreenOff, EventPowerOffDirectly, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateScreenOff, EventAdvancedOn, Transition{Target: StateScreenAdvancedOn, Action: m.doSetScreenPower})
	m.add(StateScreenOff, EventSetDisplayStateDoze, Transition{Target: StateScreenDoze, Action: m.doSetDisplayState})
	m.add(StateScreenOff, EventSetDisplayStateDozeSuspend, Transition{Target: StateScreenDozeSuspend, Action: m.doSetDisplayState})
	m.add(StateScreenOff, EventSuspendBegin, Transition{Target: StateScreenOff, Action: m.doRecordTransNormal})
	m.add(StateScreenOff, EventSetDisplayState, Transition{Target: StateScreenOff, Action: m.doRecordTransNormal})

	m.add(StateWaitScreenOnReady, EventSetDisplayState, Transition{Target: StateWaitScreenOnReady, Action: m.doSetDisplayState})
	m.add(StateWaitScreenOnReady, EventPowerOn, Transition{Target: StateScreenOn, Action: m.doSetScreenPower})
	m.add(StateWaitScreenOnReady, EventSyncPowerOn, Transition{Target: StateScreenOn, Action: m.doRecordTransNormal})
	m.add(StateWaitScreenOnReady, EventAodEnterSuccess, Transition{Target: StateScreenAod, Action: m.doRecordTransNormal})

	m.add(StateScreenOn, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin})
	m.add(StateScreenOn, EventSuspendBegin, Transition{Target: StateScreenOn, Action: m.doSuspendBegin})
	m.add(StateScreenOn, EventSetDisplayState, Transition{Target: StateWaitLockScreenInd, Action: m.doSetDisplayState})
	m.add(StateScreenOn, EventSetDisplayStateDoze, Transition{Target: StateWaitLockScreenInd, Action: m.doSetDisplayState})
	m.add(StateScreenOn, EventSetDisplayStateDozeSuspend, Transition{Target: StateWaitLockScreenInd, Action: m.doSetDisplayState})
	m.add(StateScreenOn, EventPowerOffDirectly, Transition{Target: StateScreenOff, Action: m.actionScreenPowerOff})
	m.add(StateScreenOn, EventPowerOnDirectly, Transition{Target: StateScreenOn, Action: m.doSetScreenPower})

	m.add(StateWaitLockScreenInd, EventPowerOff, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateWaitLockScreenInd, EventDoze, Transition{Target: StateScreenDoze, Action: m.doSetScreenPower})
	m.add(StateWaitLockScreenInd, EventSuspend, Transition{Target: StateWaitLockScreenInd, Action: m.doSetScreenPower})
	m.add(StateWaitLockScreenInd, EventDmsPowerCbEnd, Transition{Target: StateWaitScreenCtrlRsp, Action: m.doRecordTransNormal,
		Timeout: aodTimeout, OnTimeout: m.doAodExitAndSetPowerAllOff, TimeoutTarget: StateScreenOff})

	m.add(StateWaitScreenCtrlRsp, EventPowerOnDirectly, Transition{Target: StateScreenOn, Action: m.doAodExitAndSetPowerOn})
	m.add(StateWaitScreenCtrlRsp, EventAodEnterFail, Transition{Target: StateScreenOff, Action: m.doAodExitAndSetPowerOff})
	m.add(StateWaitScreenCtrlRsp, EventPowerOffDirectly, Transition{Target: StateScreenOff, Action: m.doAodExitAndSetPowerOff})
	m.add(StateWaitScreenCtrlRsp, EventAdvancedOn, Transition{Target: StateScreenAdvancedOn, Action: m.doSetScreenPower})
	m.add(StateWaitScreenCtrlRsp, EventAodEnterSuccess, Transition{Target: StateScreenAod, Action: m.doRecordTransNormal})
	m.add(StateWaitScreenCtrlRsp, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin})

	m.add(StateScreenAod, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin})
	m.add(StateScreenAod, EventAdvancedOn, Transition{Target: StateScreenAdvancedOn, Action: m.doSetScreenPower})
	m.add(StateScreenAod, EventPowerOff, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateScreenAod, EventPowerOffDirectly, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})

	m.add(StateScreenAdvancedOn, EventWakeupBegin, Transition{Target: StateWaitScreenAdvancedOnReady, Action: m.doWakeUpBegin})
	m.add(StateScreenAdvancedOn, EventWakeupBeginAdvanced, Transition{Target: StateWaitScreenAdvancedOnReady, Action: m.doWakeUpBegin})
	m.add(StateScreenAdvancedOn, EventAdvancedOff, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateScreenAdvancedOn, EventPowerOffDirectly, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateScreenAdvancedOn, EventPowerOnDirectly, Transition{Target: StateScreenOn, Action: m.doScreenPowerOn})
	m.add(StateScreenAdvancedOn, EventSuspendBegin, Transition{Target: StateScreenAdvancedOn, Action: m.doSuspendBegin})
	m.add(StateScreenAdvancedOn, EventSetDisplayState, Transition{Target: StateWaitLockScreenInd, Action: m.doSetDisplayState})

	m.add(StateScreenDoze, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin,
		Timeout: normalTimeout, OnTimeout: m.doScreenPowerOn, TimeoutTarget: StateScreenOn})
	m.add(StateScreenDoze, EventPowerOff, Transition{Target: StateScreenOff, Action: m.doSetScreenPower})
	m.add(StateScreenDoze, EventDozeSuspend, Transition{Target: StateScreenDozeSuspend, Action: m.doSetScreenPower})
	m.add(StateScreenDoze, EventSetDisplayState, Transition{Target: StateScreenOff, Action: m.doSetDisplayState})
	m.add(StateScreenDoze, EventSetDisplayStateDozeSuspend, Transition{Target: StateScreenDozeSuspend, Action: m.doSetDisplayState})

	m.add(StateScreenDozeSuspend, EventDoze, Transition{Target: StateScreenDoze, Action: m.doSetScreenPower})
	m.add(StateScreenDozeSuspend, EventWakeupBegin, Transition{Target: StateWaitScreenOnReady, Action: m.doWakeUpBegin,
		Timeout: normalTimeout, OnTimeout: m.doScreenPowerOn, TimeoutTarget: StateScreenOn})
	m.add(StateScreenDozeSuspend, EventSetDisplayState, Transition{Target: StateScreenOff, Action: m.doSetDisplayState})
	m.add(StateScreenDozeSuspend, EventSetDisplayStateDoze, Transition{Target: StateScreenDoze, Action: m.doSetDisplayState})

	m.add(StateWaitScreenAdvancedOnReady, EventSetScreenPowerForAllPowerOn, Transition{Target: StateScreenOn, Action: m.doSetScreenPowerForAll})
	m.add(StateWaitScreenAdvancedOnReady, EventSetScreenPowerForAllPowerOff, Transition{Target: StateScreenOff, Action: m.doSetScreenPowerForAll})
}
