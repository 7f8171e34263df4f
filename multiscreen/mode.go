// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package multiscreen

import (
	"fmt"

	"github.com/linuxdeepin/dde-screen-daemon/screensession"
	"golang.org/x/xerrors"
)

const (
	OperateTypeExtend = "extend"
	OperateTypeMirror = "mirror"
)

// Pair 是 (内屏, 外屏) 的组合
type Pair struct {
	Inner    screensession.Combination
	External screensession.Combination
}

func (p Pair) String() string {
	return fmt.Sprintf("(%v, %v)", p.Inner, p.External)
}

var (
	pairInnerMainExternalMirror = Pair{screensession.CombinationMain, screensession.CombinationMirror}
	pairInnerMainExternalExtend = Pair{screensession.CombinationMain, screensession.CombinationExtend}
	pairInnerMirrorExternalMain = Pair{screensession.CombinationMirror, screensession.CombinationMain}
	pairInnerExtendExternalMain = Pair{screensession.CombinationExtend, screensession.CombinationMain}
)

func pairOf(inner, external *screensession.ScreenSession) Pair {
	return Pair{inner.Combination, external.Combination}
}

type modeKey struct {
	source Pair
	target Pair
}

type modeHandler struct {
	name string
	fn   func(t *txn) error
}

type ModeChangeManager struct {
	u        *Utils
	handlers map[modeKey]modeHandler
}

func NewModeChangeManager(u *Utils) *ModeChangeManager {
	m := &ModeChangeManager{u: u}
	m.initHandlers()
	return m
}

func (m *ModeChangeManager) initHandlers() {
	m.handlers = map[modeKey]modeHandler{
		// 内屏主屏、外屏镜像
		{pairInnerMainExternalMirror, pairInnerMainExternalExtend}: {
			"InnerMainExternalMirrorToInnerMainExternalExtend", m.toTarget(pairInnerMainExternalExtend)},
		{pairInnerMainExternalMirror, pairInnerMirrorExternalMain}: {
			"InnerMainExternalMirrorToInnerMirrorExternalMain", m.toTarget(pairInnerMirrorExternalMain)},
		{pairInnerMainExternalMirror, pairInnerExtendExternalMain}: {
			"InnerMainExternalMirrorToInnerExtendExternalMain", m.toTarget(pairInnerExtendExternalMain)},

		// 内屏主屏、外屏扩展
		{pairInnerMainExternalExtend, pairInnerMainExternalMirror}: {
			"InnerMainExternalExtendToInnerMainExternalMirror", m.toTarget(pairInnerMainExternalMirror)},
		{pairInnerMainExternalExtend, pairInnerMirrorExternalMain}: {
			"InnerMainExternalExtendToInnerMirrorExternalMain", m.toTarget(pairInnerMirrorExternalMain)},
		{pairInnerMainExternalExtend, pairInnerExtendExternalMain}: {
			"InnerMainExternalExtendToInnerExtendExternalMain", m.toTarget(pairInnerExtendExternalMain)},

		// 内屏镜像、外屏主屏
		{pairInnerMirrorExternalMain, pairInnerMainExternalMirror}: {
			"InnerMirrorExternalMainToInnerMainExternalMirror", m.toTarget(pairInnerMainExternalMirror)},
		{pairInnerMirrorExternalMain, pairInnerMainExternalExtend}: {
			"InnerMirrorExternalMainToInnerMainExternalExtend", m.toTarget(pairInnerMainExternalExtend)},
		{pairInnerMirrorExternalMain, pairInnerExtendExternalMain}: {
			"InnerMirrorExternalMainToInnerExtendExternalMain", m.toTarget(pairInnerExtendExternalMain)},

		// 内屏扩展、外屏主屏
		{pairInnerExtendExternalMain, pairInnerMainExternalMirror}: {
			"InnerExtendExternalMainToInnerMainExternalMirror", m.toTarget(pairInnerMainExternalMirror)},
		{pairInnerExtendExternalMain, pairInnerMainExternalExtend}: {
			"InnerExtendExternalMainToInnerMainExternalExtend", m.toTarget(pairInnerMainExternalExtend)},
		{pairInnerExtendExternalMain, pairInnerMirrorExternalMain}: {
			"InnerExtendExternalMainToInnerMirrorExternalMain", m.toTarget(pairInnerMirrorExternalMain)},
	}
}

// OnMultiScreenModeChangeRequest 把外屏切换为扩展或镜像，内屏作为主屏
func (m *ModeChangeManager) OnMultiScreenModeChangeRequest(innerID, externalID screensession.ScreenID,
	operateType string) error {
	target := pairInnerMainExternalMirror
	if operateType == OperateTypeExtend {
		target = pairInnerMainExternalExtend
	}
	logger.Infof("multi screen mode change request %d %d %s", innerID, externalID, operateType)
	return m.HandleModeChange(innerID, externalID, target)
}

// HandleModeChange 切换到任意目标组合，目标组合没有对应处理时不做任何修改
func (m *ModeChangeManager) HandleModeChange(innerID, externalID screensession.ScreenID, target Pair) error {
	m.u.mu.Lock()
	defer m.u.mu.Unlock()

	inner, external, err := m.u.resolve(innerID, externalID)
	if err != nil {
		return err
	}
	source := pairOf(inner, external)
	if source == target {
		logger.Info("already in", target)
		return nil
	}
	h, ok := m.handlers[modeKey{source, target}]
	if !ok {
		return xerrors.Errorf("mode change %v -> %v: %w", source, target, DMErrorInvalidCalling)
	}

	t, err := m.u.begin(h.name, inner, external)
	if err != nil {
		return err
	}
	return t.end(h.fn(t))
}

func (m *ModeChangeManager) toTarget(target Pair) func(t *txn) error {
	return func(t *txn) error {
		return m.switchCombination(t, target)
	}
}

// switchCombination 是所有模式切换的公共步骤。主屏的逻辑会话始终保持主屏，
// 主屏需要换到另一块物理屏幕时交换两个会话的物理信息。
func (m *ModeChangeManager) switchCombination(t *txn, target Pair) error {
	main, other := t.inner, t.external
	if t.external.Combination == screensession.CombinationMain {
		main, other = t.external, t.inner
	}
	targetInnerMain := target.Inner == screensession.CombinationMain
	comb := target.External
	if !targetInnerMain {
		comb = target.Inner
	}
	swap := main.IsInternal != targetInnerMain
	prevComb := other.Combination
	prevOption := other.Option()

	if swap {
		t.physicalInfoSwap(main, other)
	}
	if prevComb == screensession.CombinationExtend && comb == screensession.CombinationMirror {
		if err := t.screenConnectionChange(prevOption, screensession.ScreenEventDisconnected); err != nil {
			return err
		}
	}

	other.Combination = comb
	other.IsExtend = true
	// 节点重建之前只通知一次
	if err := t.createScreenSessionOnly(other); err != nil {
		return err
	}
	if swap {
		if err := t.extendDisplayNodeChange(main, other); err != nil {
			return err
		}
		if err := t.reuseNode(main, t.mainConfig(main)); err != nil {
			return err
		}
	}

	if comb == screensession.CombinationMirror {
		if err := t.createMirrorSession(main, other); err != nil {
			return err
		}
		if err := t.mainPositionChange(main, other); err != nil {
			return err
		}
	} else {
		if err := t.createExtendSession(other); err != nil {
			return err
		}
		if err := t.extendPositionChange(main, other); err != nil {
			return err
		}
	}

	if prevComb == screensession.CombinationMirror && comb == screensession.CombinationExtend {
		if err := t.screenConnectionChange(other.Option(), screensession.ScreenEventConnected); err != nil {
			return err
		}
	}

	t.combinationChange(main, other, comb)
	if swap {
		t.notifyPropertyAndDensity(main)
	}
	t.notifyPropertyAndDensity(other)
	return nil
}
