// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"github.com/linuxdeepin/dde-screen-daemon/agent"
	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screenpower"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"github.com/linuxdeepin/go-lib/multierr"
	"golang.org/x/xerrors"
)

// powerExecutor 把状态机的动作落到渲染服务和屏幕表上
type powerExecutor struct {
	m *Manager
}

func (e *powerExecutor) WakeUpBegin(reason screenpower.PowerStateChangeReason) error {
	e.m.agents.Notify(agent.TypePowerEvent, "OnWakeUpBegin", uint32(reason))
	return nil
}

func (e *powerExecutor) SuspendBegin(reason screenpower.PowerStateChangeReason) error {
	e.m.agents.Notify(agent.TypePowerEvent, "OnSuspendBegin", uint32(reason))
	return nil
}

func (e *powerExecutor) SetDisplayState(state screenpower.DisplayState) error {
	e.m.agents.Notify(agent.TypeDisplayState, "OnDisplayStateChanged", uint32(state))
	return nil
}

func (e *powerExecutor) SetScreenPowerStatus(id screensession.ScreenID, status render.PowerStatus) error {
	s, ok := e.m.table.Get(id)
	if !ok {
		return xerrors.Errorf("screen %d: %w", id, screensession.ErrNoSuchScreen)
	}
	return e.setPower(s, status)
}

func (e *powerExecutor) setPower(s *screensession.ScreenSession, status render.PowerStatus) error {
	logger.Infof("set %v power status %v", s, status)
	err := e.m.rs.SetScreenPowerStatus(s.RSID, status)
	if err != nil {
		return xerrors.Errorf("set screen %d power status: %w", s.ID, err)
	}
	err = e.m.table.Update(s.ID, func(ss *screensession.ScreenSession) error {
		ss.PowerStatus = status
		return nil
	})
	if err != nil {
		return err
	}
	e.m.agents.NotifyScreen(s.ID, agent.TypePowerEvent, "OnScreenPowerChanged", uint64(s.ID), uint32(status))
	return nil
}

func toRenderPowerStatus(state screenpower.ScreenPowerState) render.PowerStatus {
	switch state {
	case screenpower.PowerStateOn:
		return render.PowerStatusOn
	case screenpower.PowerStateStandBy:
		return render.PowerStatusStandby
	case screenpower.PowerStateSuspend:
		return render.PowerStatusSuspend
	case screenpower.PowerStateOff:
		return render.PowerStatusOff
	case screenpower.PowerStateDoze:
		return render.PowerStatusDoze
	case screenpower.PowerStateDozeSuspend:
		return render.PowerStatusDozeSuspend
	}
	return render.PowerStatusInvalid
}

func toScreenPowerState(status render.PowerStatus) screenpower.ScreenPowerState {
	switch status {
	case render.PowerStatusOn, render.PowerStatusOnAdvanced:
		return screenpower.PowerStateOn
	case render.PowerStatusStandby:
		return screenpower.PowerStateStandBy
	case render.PowerStatusSuspend:
		return screenpower.PowerStateSuspend
	case render.PowerStatusOff, render.PowerStatusOffFake, render.PowerStatusOffAdvanced:
		return screenpower.PowerStateOff
	case render.PowerStatusDoze:
		return screenpower.PowerStateDoze
	case render.PowerStatusDozeSuspend:
		return screenpower.PowerStateDozeSuspend
	}
	return screenpower.PowerStateInvalid
}

type appliedPower struct {
	s    *screensession.ScreenSession
	prev render.PowerStatus
}

// SetScreenPowerForAll 对所有屏幕执行，任一屏幕失败时恢复已经设置的屏幕
func (e *powerExecutor) SetScreenPowerForAll(state screenpower.ScreenPowerState, reason screenpower.PowerStateChangeReason) error {
	status := toRenderPowerStatus(state)
	if status == render.PowerStatusInvalid {
		return xerrors.Errorf("invalid screen power state %v", state)
	}
	logger.Infof("set all screens power %v, reason %d", state, reason)
	var applied []appliedPower
	for _, s := range e.m.table.List() {
		if s.FakeOf != screensession.InvalidScreenID {
			continue
		}
		prev := s.PowerStatus
		err := e.setPower(s, status)
		if err != nil {
			e.undoPower(applied)
			return xerrors.Errorf("set all screens power %v: %w", state, err)
		}
		applied = append(applied, appliedPower{s: s, prev: prev})
	}
	return nil
}

func (e *powerExecutor) undoPower(applied []appliedPower) {
	var errs error
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		err := e.setPower(a.s, a.prev)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		logger.Warning("restore screen power failed:", errs)
	}
}

func (e *powerExecutor) AodExitAndSetPower(id screensession.ScreenID, status render.PowerStatus) error {
	e.m.agents.Notify(agent.TypePowerEvent, "OnAodExit", uint64(id))
	return e.SetScreenPowerStatus(id, status)
}

func (e *powerExecutor) AodExitAndSetPowerAllOff() error {
	e.m.agents.Notify(agent.TypePowerEvent, "OnAodExit", uint64(screensession.InvalidScreenID))
	return e.SetScreenPowerForAll(screenpower.PowerStateOff, screenpower.ReasonTimeout)
}

// ScreenPower 返回主屏的电源状态，没有屏幕时视为关闭
func (e *powerExecutor) ScreenPower() screenpower.ScreenPowerState {
	for _, s := range e.m.table.List() {
		if s.Combination == screensession.CombinationMain {
			return toScreenPowerState(s.PowerStatus)
		}
	}
	return screenpower.PowerStateOff
}

type powerState struct {
	m *Manager
}

func (p *powerState) IsScreenOn() bool {
	return p.m.isScreenOn()
}

func (p *powerState) IsSystemSleep() bool {
	return p.m.isSystemSleep()
}

func (p *powerState) IsLidOpen() bool {
	return p.m.isLidOpen()
}

type multiScreenListener struct {
	m *Manager
}

func (l *multiScreenListener) OnCombinationChanged(inner, external *screensession.ScreenSession) {
	logger.Infof("combination changed, inner: %v, external: %v", inner, external)
	l.m.emitSignal("CombinationChanged", uint64(inner.ID), uint32(inner.Combination),
		uint64(external.ID), uint32(external.Combination))
	l.m.agents.Notify(agent.TypeScreenEvent, "OnCombinationChanged", uint64(inner.ID), uint32(inner.Combination),
		uint64(external.ID), uint32(external.Combination))
}

func (l *multiScreenListener) OnScreenAvailableChanged(id screensession.ScreenID, available bool) {
	l.m.agents.NotifyScreen(id, agent.TypeScreenEvent, "OnScreenAvailableChanged", uint64(id), available)
}

func (m *Manager) handleScreenStateChanged(from, to screenpower.TransitionState) {
	if m.setPropScreenState(to.String()) {
		m.emitSignal("ScreenStateChanged", to.String())
	}
}
