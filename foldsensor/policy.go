// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package foldsensor

import "sync"

// FoldPolicy 把折叠状态映射为显示模式
type FoldPolicy interface {
	SetFoldStatus(status FoldStatus)
	// SendSensorResult 返回 true 表示显示模式切换已经开始，
	// 切换完成后需要用 step 调用 FinishTaskSequence。
	SendSensorResult(status FoldStatus, step Step) bool
	GetLockDisplayStatus() bool
	ChangeOnTentMode(status FoldStatus)
	ChangeOffTentMode()
}

// ModeChangeFunc 在显示模式变化时调用，运行在传感器所在的 goroutine 上。
// 传感器结果触发的切换带有持有屏障的 step，其他来源为 NoStep
type ModeChangeFunc func(from, to FoldDisplayMode, step Step)

type DisplayModePolicy struct {
	mu       sync.Mutex
	topology Topology
	status   FoldStatus
	mode     FoldDisplayMode
	locked   bool
	onChange ModeChangeFunc
}

func NewDisplayModePolicy(topology Topology, onChange ModeChangeFunc) *DisplayModePolicy {
	return &DisplayModePolicy{
		topology: topology,
		onChange: onChange,
	}
}

func (p *DisplayModePolicy) ModeMatchStatus(status FoldStatus) FoldDisplayMode {
	switch p.topology {
	case TopologyDual:
		switch status {
		case FoldStatusExpand, FoldStatusHalfFold:
			return FoldDisplayModeMain
		case FoldStatusFolded:
			return FoldDisplayModeSub
		}
	case TopologySecondary:
		switch status {
		case FoldStatusExpand, FoldStatusHalfFold:
			return FoldDisplayModeFull
		case FoldStatusFolded,
			FoldStatusFoldedWithSecondExpand,
			FoldStatusFoldedWithSecondHalfFolded:
			return FoldDisplayModeMain
		case FoldStatusExpandWithSecondExpand,
			FoldStatusExpandWithSecondHalfFolded,
			FoldStatusHalfFoldWithSecondExpand,
			FoldStatusHalfFoldWithSecondHalfFolded:
			return FoldDisplayModeGlobalFull
		}
	default:
		switch status {
		case FoldStatusExpand, FoldStatusHalfFold:
			return FoldDisplayModeFull
		case FoldStatusFolded:
			return FoldDisplayModeMain
		}
	}
	logger.Warning("fold status is invalid:", status)
	return FoldDisplayModeUnknown
}

func (p *DisplayModePolicy) SetFoldStatus(status FoldStatus) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

func (p *DisplayModePolicy) FoldStatus() FoldStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *DisplayModePolicy) DisplayMode() FoldDisplayMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetLockDisplayStatus 锁定后传感器结果不再切换显示模式
func (p *DisplayModePolicy) SetLockDisplayStatus(locked bool) {
	p.mu.Lock()
	p.locked = locked
	p.mu.Unlock()
}

func (p *DisplayModePolicy) GetLockDisplayStatus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

func (p *DisplayModePolicy) SendSensorResult(status FoldStatus, step Step) bool {
	return p.ChangeDisplayMode(p.ModeMatchStatus(status), step)
}

// ChangeDisplayMode 返回 false 表示模式未变化
func (p *DisplayModePolicy) ChangeDisplayMode(mode FoldDisplayMode, step Step) bool {
	if mode == FoldDisplayModeUnknown {
		return false
	}
	p.mu.Lock()
	from := p.mode
	if from == mode {
		p.mu.Unlock()
		logger.Debug("fold display mode not changed:", mode)
		return false
	}
	p.mode = mode
	onChange := p.onChange
	p.mu.Unlock()

	logger.Infof("fold display mode %v -> %v", from, mode)
	if onChange == nil {
		return false
	}
	onChange(from, mode, step)
	return true
}

func (p *DisplayModePolicy) ChangeOnTentMode(status FoldStatus) {
	mode := p.ModeMatchStatus(status)
	if p.topology == TopologyDual {
		mode = FoldDisplayModeSub
	}
	p.ChangeDisplayMode(mode, NoStep)
}

func (p *DisplayModePolicy) ChangeOffTentMode() {
	p.ChangeDisplayMode(p.ModeMatchStatus(p.FoldStatus()), NoStep)
}
