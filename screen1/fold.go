// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package screen1

import (
	"context"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/dde-screen-daemon/agent"
	"github.com/linuxdeepin/dde-screen-daemon/foldsensor"
)

type foldListener struct {
	m *Manager
}

func (l *foldListener) OnFoldStatusChanged(report foldsensor.StatusReport) {
	m := l.m
	m.setPropFoldStatus(uint32(report.To))
	m.emitSignal("FoldStatusChanged", uint32(report.To))
	m.agents.Notify(agent.TypeFoldEvent, "OnFoldStatusChanged",
		uint32(report.To), uint32(report.From), int64(report.Duration/time.Millisecond))
}

func (l *foldListener) OnTentModeChanged(status foldsensor.TentModeStatus) {
	m := l.m
	m.setPropTentMode(status == foldsensor.NormalEnterTentMode)
	m.emitSignal("TentModeChanged", uint32(status))
	m.agents.Notify(agent.TypeFoldEvent, "OnTentModeChanged", uint32(status))
}

func (l *foldListener) OnFoldAngleChanged(angles []float64) {
	l.m.agents.Notify(agent.TypeFoldEvent, "OnFoldAngleChanged", angles)
}

// handleFoldDisplayModeChange 在会话调度器上完成切换，完成后释放 step 对应的单步屏障
func (m *Manager) handleFoldDisplayModeChange(from, to foldsensor.FoldDisplayMode, step foldsensor.Step) {
	m.sessionScheduler.PostAsyncTask(func(ctx context.Context) error {
		defer m.fold.FinishTaskSequence(step)

		logger.Infof("fold display mode change %v -> %v", from, to)
		m.setPropFoldDisplayMode(uint32(to))
		m.emitSignal("FoldDisplayModeChanged", uint32(to))
		m.agents.Notify(agent.TypeFoldEvent, "OnFoldDisplayModeChanged", uint32(to))
		return nil
	}, "fold display mode change", 0)
}

func (m *Manager) setLastAngle(angle float64) {
	m.sampleMu.Lock()
	m.lastAngle = angle
	m.sampleMu.Unlock()
}

func (m *Manager) getLastAngle() float64 {
	m.sampleMu.Lock()
	defer m.sampleMu.Unlock()
	return m.lastAngle
}

func (m *Manager) reportPosture(angles []float64, halls []int) {
	if len(angles) > 0 {
		m.setLastAngle(angles[0])
	}
	m.sensorScheduler.PostAsyncTask(func(ctx context.Context) error {
		m.fold.HandleAngleOrHallChange(angles, halls, true)
		return nil
	}, "posture", 0)
}

func (m *Manager) reportTent(tentOn bool, hall int) {
	m.sensorScheduler.PostAsyncTask(func(ctx context.Context) error {
		m.fold.HandleTentChange(tentOn, hall)
		return nil
	}, "tent", 0)
}

// handleLidHall 处理 UPower 合盖状态，角度沿用最近一次上报的值
func (m *Manager) handleLidHall(hall int) {
	angle := m.getLastAngle()
	m.sensorScheduler.PostAsyncTask(func(ctx context.Context) error {
		m.fold.HandleHallChange(angle, hall)
		return nil
	}, "lid hall", 0)
}

func (m *Manager) handleProfileChanged(p *foldsensor.Profile) {
	logger.Debug("profile changed:", spew.Sdump(p))
	if p.Topology != "" && p.Topology != m.fold.Topology() {
		logger.Warningf("topology changed to %v, restart to take effect", p.Topology)
	}
	m.fold.SetProfile(p)

	m.sampleMu.Lock()
	m.profile = p
	m.sampleMu.Unlock()
}

func (m *Manager) getProfile() *foldsensor.Profile {
	m.sampleMu.Lock()
	defer m.sampleMu.Unlock()
	return m.profile
}
