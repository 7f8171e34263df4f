// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"fmt"
	"sync"

	"github.com/linuxdeepin/dde-screen-daemon/render"
	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"golang.org/x/xerrors"
)

// SwitchType 是多屏电源切换类型
type SwitchType uint32

const (
	SwitchOn SwitchType = iota
	SwitchOff
	SwitchExternal
)

func (s SwitchType) String() string {
	switch s {
	case SwitchOn:
		return "SCREEN_SWITCH_ON"
	case SwitchOff:
		return "SCREEN_SWITCH_OFF"
	case SwitchExternal:
		return "SCREEN_SWITCH_EXTERNAL"
	}
	return fmt.Sprintf("SwitchType(%d)", uint32(s))
}

// PowerState 提供开屏前需要检查的系统状态
type PowerState interface {
	IsScreenOn() bool
	IsSystemSleep() bool
	IsLidOpen() bool
}

type powerHandler struct {
	name string
	fn   func(t *txn) error
}

type PowerChangeManager struct {
	u     *Utils
	state PowerState

	onlyExternal map[Pair]powerHandler
	recovery     map[Pair]powerHandler

	mu       sync.Mutex
	recorded *Pair
}

func NewPowerChangeManager(u *Utils, state PowerState) *PowerChangeManager {
	m := &PowerChangeManager{u: u, state: state}
	m.onlyExternal = map[Pair]powerHandler{
		pairInnerMainExternalExtend: {"InnerMainExternalExtendToExternalOnly", m.handleInnerMainExternalExtendOff},
		pairInnerMainExternalMirror: {"InnerMainExternalMirrorToExternalOnly", m.handleInnerMainExternalMirrorOff},
		pairInnerExtendExternalMain: {"InnerExtendExternalMainToExternalOnly", m.handleInnerExtendExternalMainOff},
		pairInnerMirrorExternalMain: {"InnerMirrorExternalMainToExternalOnly", m.handleInnerMirrorExternalMainOff},
	}
	m.recovery = map[Pair]powerHandler{
		pairInnerMainExternalExtend: {"RecoverInnerMainExternalExtend", m.recoverInnerMainExternalExtend},
		pairInnerMainExternalMirror: {"RecoverInnerMainExternalMirror", m.recoverInnerMainExternalMirror},
		pairInnerExtendExternalMain: {"RecoverInnerExtendExternalMain", m.recoverInnerExtendExternalMain},
		pairInnerMirrorExternalMain: {"RecoverInnerMirrorExternalMain", m.recoverInnerMirrorExternalMain},
	}
	return m
}

// Recorded 返回关闭内屏前记录的组合
func (m *PowerChangeManager) Recorded() (Pair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorded == nil {
		return Pair{}, false
	}
	return *m.recorded, true
}

// OnMultiScreenPowerChangeRequest 关闭内屏只保留外屏，或者恢复关闭前的组合
func (m *PowerChangeManager) OnMultiScreenPowerChangeRequest(innerID, externalID screensession.ScreenID,
	switchType SwitchType) error {
	m.u.mu.Lock()
	defer m.u.mu.Unlock()

	inner, external, err := m.u.resolve(innerID, externalID)
	if err != nil {
		return err
	}
	logger.Infof("multi screen power change %v, inner: %v, external: %v", switchType, inner, external)

	source := pairOf(inner, external)
	var h powerHandler
	var ok bool
	switch switchType {
	case SwitchOff, SwitchExternal:
		h, ok = m.onlyExternal[source]
		if !ok {
			return xerrors.Errorf("power off from %v: %w", source, DMErrorInvalidCalling)
		}
	case SwitchOn:
		recorded, has := m.Recorded()
		if !has {
			return xerrors.Errorf("no recorded combination: %w", DMErrorInvalidCalling)
		}
		h, ok = m.recovery[recorded]
		if !ok {
			return xerrors.Errorf("recover %v: %w", recorded, DMErrorInvalidCalling)
		}
	default:
		return xerrors.Errorf("switch type %v: %w", switchType, DMErrorInvalidParam)
	}

	t, err := m.u.begin(h.name, inner, external)
	if err != nil {
		return err
	}
	if err = t.end(h.fn(t)); err != nil {
		return err
	}

	m.mu.Lock()
	switch switchType {
	case SwitchOff:
		m.recorded = &source
	case SwitchOn:
		m.recorded = nil
	}
	m.mu.Unlock()
	return nil
}

// callRsSetScreenPowerStatusSyncToOn 打开屏幕电源，系统睡眠中或者合盖时的内置屏幕跳过
func (m *PowerChangeManager) callRsSetScreenPowerStatusSyncToOn(t *txn, s *screensession.ScreenSession) error {
	if m.state != nil {
		if !m.state.IsScreenOn() && m.state.IsSystemSleep() {
			logger.Info("system is sleeping, skip power on", s.RSID)
			return nil
		}
		if !m.state.IsLidOpen() && s.IsInternal {
			logger.Info("lid closed, skip power on builtin screen", s.RSID)
			return nil
		}
	}
	return t.setPowerStatus(s, render.PowerStatusOn)
}

func (m *PowerChangeManager) handleInnerMainExternalExtendOff(t *txn) error {
	i, e := t.inner, t.external
	if err := t.extendDisplayNodeChange(i, e); err != nil {
		return err
	}
	t.combinationChange(i, e, screensession.CombinationExtend)
	t.physicalInfoSwap(i, e)
	if err := t.mainPositionChange(i, e); err != nil {
		return err
	}
	t.notifyPropertyAndDensity(i)
	t.notifyPropertyAndDensity(e)
	t.setScreenAvailableStatus(e, false)
	if err := t.screenConnectionChange(e.Option(), screensession.ScreenEventDisconnected); err != nil {
		return err
	}
	if err := t.setPowerStatus(e, render.PowerStatusOff); err != nil {
		return err
	}
	return m.callRsSetScreenPowerStatusSyncToOn(t, i)
}

func (m *PowerChangeManager) handleInnerMainExternalMirrorOff(t *txn) error {
	i, e := t.inner, t.external
	if err := t.mainDisplayNodeChange(i, e); err != nil {
		return err
	}
	t.combinationChange(i, e, screensession.CombinationMirror)
	t.physicalInfoSwap(i, e)
	if err := t.mainPositionChange(i, e); err != nil {
		return err
	}
	t.notifyPropertyAndDensity(i)
	t.notifyPropertyAndDensity(e)
	t.setScreenAvailableStatus(e, false)
	if err := t.setPowerStatus(e, render.PowerStatusOff); err != nil {
		return err
	}
	return m.callRsSetScreenPowerStatusSyncToOn(t, i)
}

func (m *PowerChangeManager) handleInnerExtendExternalMainOff(t *txn) error {
	i, e := t.inner, t.external
	if err := t.screenConnectionChange(i.Option(), screensession.ScreenEventDisconnected); err != nil {
		return err
	}
	t.combinationChange(e, i, screensession.CombinationExtend)
	t.setScreenAvailableStatus(i, false)
	if err := t.setPowerStatus(i, render.PowerStatusOff); err != nil {
		return err
	}
	return m.callRsSetScreenPowerStatusSyncToOn(t, e)
}

func (m *PowerChangeManager) handleInnerMirrorExternalMainOff(t *txn) error {
	i, e := t.inner, t.external
	if err := t.screenConnectionChange(i.Option(), screensession.ScreenEventDisconnected); err != nil {
		return err
	}
	t.combinationChange(e, i, screensession.CombinationMirror)
	t.setScreenAvailableStatus(i, false)
	if err := t.removeDisplayNode(i); err != nil {
		return err
	}
	if err := t.setPowerStatus(i, render.PowerStatusOff); err != nil {
		return err
	}
	return m.callRsSetScreenPowerStatusSyncToOn(t, e)
}

// 恢复时内屏指当前持有内置物理屏幕的会话，关闭前的交换会让它和原来的逻辑会话不同

func (m *PowerChangeManager) recoverInnerMainExternalExtend(t *txn) error {
	inner, ext := t.inner, t.external
	if err := t.createExtendSession(inner); err != nil {
		return err
	}
	if err := t.createScreenSessionOnly(inner); err != nil {
		return err
	}
	if err := t.extendDisplayNodeChange(inner, ext); err != nil {
		return err
	}
	t.combinationChange(ext, inner, screensession.CombinationExtend)
	t.physicalInfoSwap(ext, inner)
	if err := t.screenConnectionChange(inner.Option(), screensession.ScreenEventConnected); err != nil {
		return err
	}
	t.notifyPropertyAndDensity(inner)
	t.notifyPropertyAndDensity(ext)
	if err := t.extendPositionChange(ext, inner); err != nil {
		return err
	}
	t.setScreenAvailableStatus(inner, true)
	// 交换之后 ext 持有内置屏幕
	return m.callRsSetScreenPowerStatusSyncToOn(t, ext)
}

func (m *PowerChangeManager) recoverInnerMainExternalMirror(t *txn) error {
	inner, ext := t.inner, t.external
	if err := t.createMirrorSession(ext, inner); err != nil {
		return err
	}
	if err := t.mainDisplayNodeChange(ext, inner); err != nil {
		return err
	}
	t.combinationChange(ext, inner, screensession.CombinationMirror)
	t.physicalInfoSwap(ext, inner)
	if err := t.mainPositionChange(ext, inner); err != nil {
		return err
	}
	t.notifyPropertyAndDensity(inner)
	t.notifyPropertyAndDensity(ext)
	t.setScreenAvailableStatus(inner, true)
	return m.callRsSetScreenPowerStatusSyncToOn(t, ext)
}

func (m *PowerChangeManager) recoverInnerExtendExternalMain(t *txn) error {
	inner, ext := t.inner, t.external
	if err := t.createExtendSession(inner); err != nil {
		return err
	}
	if err := t.createScreenSessionOnly(inner); err != nil {
		return err
	}
	t.combinationChange(ext, inner, screensession.CombinationExtend)
	if err := t.extendPositionChange(ext, inner); err != nil {
		return err
	}
	t.setScreenAvailableStatus(inner, true)
	if err := t.screenConnectionChange(inner.Option(), screensession.ScreenEventConnected); err != nil {
		return err
	}
	return m.callRsSetScreenPowerStatusSyncToOn(t, inner)
}

func (m *PowerChangeManager) recoverInnerMirrorExternalMain(t *txn) error {
	inner, ext := t.inner, t.external
	if err := t.createMirrorSession(ext, inner); err != nil {
		return err
	}
	t.combinationChange(ext, inner, screensession.CombinationMirror)
	t.setScreenAvailableStatus(inner, true)
	return m.callRsSetScreenPowerStatusSyncToOn(t, inner)
}
